package policy

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/lumyn-labs/lumyn/internal/errkit"
)

func loadReasonCodes(path string) (map[string]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errkit.Wrap(errkit.Internal, fmt.Sprintf("reason code registry unreadable: %s", path), err)
	}
	var codes map[string]string
	if err := json.Unmarshal(raw, &codes); err != nil {
		return nil, errkit.Wrap(errkit.Internal, "reason code registry is not valid JSON", err)
	}
	return codes, nil
}
