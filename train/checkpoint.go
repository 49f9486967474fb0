package train

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/tsawler/go-ddp/nn"
	"github.com/tsawler/go-ddp/optimizer"
	"github.com/tsawler/go-ddp/tensor"
)

const checkpointVersion = 1

// Meta describes a saved checkpoint.
type Meta struct {
	Version   int       `json:"version"`
	RunID     string    `json:"run_id"`
	CreatedAt time.Time `json:"created_at"`
	Epochs    int       `json:"epochs"`
}

type savedTensor struct {
	Shape []int     `json:"shape"`
	Data  []float32 `json:"data"`
}

type checkpointPayload struct {
	Model     map[string]savedTensor `json:"model"`
	Optimizer map[string][]float32   `json:"optimizer,omitempty"`
}

type checkpointFile struct {
	Meta     Meta              `json:"meta"`
	Payload  checkpointPayload `json:"payload"`
	Checksum string            `json:"checksum"`
}

// payloadChecksum hashes the canonical JSON encoding of the payload.
// Map keys marshal in sorted order, so the encoding is deterministic.
func payloadChecksum(p checkpointPayload) (string, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// Save writes the model and optimizer state to path with a fresh run ID
// and an integrity checksum.
func Save(path string, model *nn.Net, opt optimizer.Optimizer, epochs int) error {
	payload := checkpointPayload{Model: make(map[string]savedTensor)}
	for name, t := range model.StateDict() {
		payload.Model[name] = savedTensor{Shape: t.Shape, Data: t.Data}
	}
	if opt != nil {
		payload.Optimizer = opt.StateDict()
	}

	checksum, err := payloadChecksum(payload)
	if err != nil {
		return fmt.Errorf("checksum: %w", err)
	}
	file := checkpointFile{
		Meta: Meta{
			Version:   checkpointVersion,
			RunID:     uuid.NewString(),
			CreatedAt: time.Now().UTC(),
			Epochs:    epochs,
		},
		Payload:  payload,
		Checksum: checksum,
	}

	raw, err := json.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	return os.Rename(tmp, path)
}

// Load restores model parameters, and optimizer state when opt is
// non-nil, from a checkpoint written by Save. The payload checksum and
// parameter shapes are validated before anything is mutated.
func Load(path string, model *nn.Net, opt optimizer.Optimizer) (Meta, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Meta{}, fmt.Errorf("read checkpoint: %w", err)
	}
	var file checkpointFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return Meta{}, fmt.Errorf("decode checkpoint: %w", err)
	}
	if file.Meta.Version != checkpointVersion {
		return Meta{}, fmt.Errorf("unsupported checkpoint version %d", file.Meta.Version)
	}

	checksum, err := payloadChecksum(file.Payload)
	if err != nil {
		return Meta{}, fmt.Errorf("checksum: %w", err)
	}
	if checksum != file.Checksum {
		return Meta{}, fmt.Errorf("checkpoint corrupt: checksum mismatch")
	}

	state := make(map[string]*tensor.Tensor, len(file.Payload.Model))
	for name, saved := range file.Payload.Model {
		t, err := tensor.NewTensor(saved.Shape, saved.Data)
		if err != nil {
			return Meta{}, fmt.Errorf("parameter %q: %w", name, err)
		}
		state[name] = t
	}
	if err := model.LoadStateDict(state); err != nil {
		return Meta{}, err
	}
	if opt != nil && file.Payload.Optimizer != nil {
		if err := opt.LoadStateDict(file.Payload.Optimizer); err != nil {
			return Meta{}, fmt.Errorf("optimizer state: %w", err)
		}
	}
	return file.Meta, nil
}
