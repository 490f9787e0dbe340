// Package remoteasr carries recognition requests to a dictate asr-server over
// gRPC using protobuf well-known types as the wire messages.
package remoteasr

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/rbright/dictate/internal/inference"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	serviceName     = "dictate.asr.v1.Recognizer"
	recognizeMethod = "/" + serviceName + "/Recognize"
)

// Request options travel as metadata; the body is raw little-endian float32 PCM.
const (
	mdPath             = "dictate-path"
	mdLanguage         = "dictate-language"
	mdPrompt           = "dictate-prompt-bin"
	mdThreads          = "dictate-threads"
	mdBeamSize         = "dictate-beam-size"
	mdTemperature      = "dictate-temperature"
	mdTemperatureInc   = "dictate-temperature-inc"
	mdLogprobThreshold = "dictate-logprob-threshold"
	mdEntropyThreshold = "dictate-entropy-threshold"
	mdNoSpeech         = "dictate-no-speech-threshold"
)

type recognizer interface {
	recognize(ctx context.Context, in *wrapperspb.BytesValue) (*structpb.ListValue, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*recognizer)(nil),
	Methods: []grpc.MethodDesc{{
		MethodName: "Recognize",
		Handler:    recognizeHandler,
	}},
	Metadata: "dictate/asr/v1/recognizer",
}

func recognizeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(recognizer).recognize(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: recognizeMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(recognizer).recognize(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}

func encodeSamples(samples []float32) []byte {
	buf := make([]byte, 4*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(s))
	}
	return buf
}

func decodeSamples(raw []byte) ([]float32, error) {
	if len(raw)%4 != 0 {
		return nil, fmt.Errorf("pcm payload length %d is not a multiple of 4", len(raw))
	}
	samples := make([]float32, len(raw)/4)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[4*i:]))
	}
	return samples, nil
}

func requestMetadata(path inference.Path, req inference.Request) metadata.MD {
	md := metadata.Pairs(
		mdPath, string(path),
		mdLanguage, req.Language,
		mdThreads, strconv.Itoa(req.Threads),
		mdBeamSize, strconv.Itoa(req.Params.BeamSize),
		mdTemperature, formatFloat(req.Params.Temperature),
		mdTemperatureInc, formatFloat(req.Params.TemperatureInc),
		mdLogprobThreshold, formatFloat(req.Params.LogprobThreshold),
		mdEntropyThreshold, formatFloat(req.Params.EntropyThreshold),
		mdNoSpeech, formatFloat(req.Params.NoSpeechThreshold),
	)
	if req.Prompt != "" {
		md.Set(mdPrompt, req.Prompt)
	}
	return md
}

func parseMetadata(md metadata.MD) (inference.Path, inference.Request, error) {
	get := func(key string) string {
		if values := md.Get(key); len(values) > 0 {
			return values[0]
		}
		return ""
	}

	path := inference.Path(get(mdPath))
	switch path {
	case inference.PathAccelerated, inference.PathCPU:
	case "":
		path = inference.PathAccelerated
	default:
		return "", inference.Request{}, fmt.Errorf("unknown inference path %q", path)
	}

	req := inference.Request{
		Prompt:   get(mdPrompt),
		Language: get(mdLanguage),
		Params:   inference.DefaultDecodeParams(),
	}

	var err error
	if req.Threads, err = parseInt(get(mdThreads), 0); err != nil {
		return "", inference.Request{}, fmt.Errorf("threads: %w", err)
	}
	if req.Params.BeamSize, err = parseInt(get(mdBeamSize), req.Params.BeamSize); err != nil {
		return "", inference.Request{}, fmt.Errorf("beam size: %w", err)
	}
	floats := []struct {
		key string
		dst *float64
	}{
		{mdTemperature, &req.Params.Temperature},
		{mdTemperatureInc, &req.Params.TemperatureInc},
		{mdLogprobThreshold, &req.Params.LogprobThreshold},
		{mdEntropyThreshold, &req.Params.EntropyThreshold},
		{mdNoSpeech, &req.Params.NoSpeechThreshold},
	}
	for _, f := range floats {
		raw := get(f.key)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return "", inference.Request{}, fmt.Errorf("%s: %w", f.key, err)
		}
		*f.dst = v
	}
	return path, req, nil
}

func encodeSegments(segments []inference.Segment) (*structpb.ListValue, error) {
	values := make([]any, 0, len(segments))
	for _, seg := range segments {
		values = append(values, map[string]any{
			"text":     seg.Text,
			"start_ms": float64(seg.Start.Milliseconds()),
			"end_ms":   float64(seg.End.Milliseconds()),
		})
	}
	return structpb.NewList(values)
}

func decodeSegments(list *structpb.ListValue) ([]inference.Segment, error) {
	segments := make([]inference.Segment, 0, len(list.GetValues()))
	for i, value := range list.GetValues() {
		fields := value.GetStructValue().GetFields()
		if fields == nil {
			return nil, fmt.Errorf("segment %d is not an object", i)
		}
		segments = append(segments, inference.Segment{
			Text:  fields["text"].GetStringValue(),
			Start: time.Duration(fields["start_ms"].GetNumberValue()) * time.Millisecond,
			End:   time.Duration(fields["end_ms"].GetNumberValue()) * time.Millisecond,
		})
	}
	return segments, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func parseInt(raw string, fallback int) (int, error) {
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}
