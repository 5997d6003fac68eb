package channel

import (
	"encoding/json"
	"fmt"

	"sheetport/internal/delegation"
)

func encode(msg delegation.Message) ([]byte, error) {
	b, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode delegation message: %w", err)
	}
	return b, nil
}

func decode(b []byte) (delegation.Message, error) {
	var msg delegation.Message
	if err := json.Unmarshal(b, &msg); err != nil {
		return delegation.Message{}, fmt.Errorf("decode delegation message: %w", err)
	}
	return msg, nil
}
