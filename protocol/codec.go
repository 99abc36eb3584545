package protocol

import (
	"encoding/base64"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
)

// Marshal encodes an envelope for event carrying payload.
func Marshal(event Event, payload interface{}) ([]byte, error) {
	var raw []byte
	if payload != nil {
		b, err := sonic.Marshal(payload)
		if err != nil {
			return nil, errors.Wrapf(err, "protocol: marshal payload for %q", event)
		}
		raw = b
	}
	return sonic.Marshal(Envelope{Event: event, Data: raw})
}

// Unmarshal decodes a text frame into its event name and raw payload.
func Unmarshal(data []byte) (Event, []byte, error) {
	var env Envelope
	if err := sonic.Unmarshal(data, &env); err != nil {
		return "", nil, errors.Wrap(err, "protocol: unmarshal envelope")
	}
	if env.Event == "" {
		return "", nil, errors.New("protocol: envelope missing event field")
	}
	return env.Event, env.Data, nil
}

// UnmarshalPayload decodes a raw payload into T. An empty payload yields
// the zero value.
func UnmarshalPayload[T any](raw []byte) (T, error) {
	var v T
	if len(raw) == 0 || string(raw) == "null" {
		return v, nil
	}
	if err := sonic.Unmarshal(raw, &v); err != nil {
		return v, errors.Wrap(err, "protocol: unmarshal payload")
	}
	return v, nil
}

// DecodeAudio reads the payload of a text audio-data envelope, a base64
// JSON string.
func DecodeAudio(raw []byte) ([]byte, error) {
	encoded, err := UnmarshalPayload[string](raw)
	if err != nil {
		return nil, err
	}
	audio, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, errors.Wrap(err, "protocol: decode audio payload")
	}
	return audio, nil
}
