package extract

import (
	"os/exec"
	"sync"

	"ragify/types"
)

// DocHandler extracts text from legacy .doc files through the antiword
// binary. The lookup result is cached after the first call; a missing
// binary surfaces as a dependency error naming the remediation instead of
// failing the whole process.
type DocHandler struct {
	once    sync.Once
	binPath string
	lookErr error
}

func NewDocHandler() *DocHandler {
	return &DocHandler{}
}

func (h *DocHandler) ID() string { return "doc" }

func (h *DocHandler) Supports(ext string) bool { return ext == "doc" }

func (h *DocHandler) Extract(filePath string) (string, error) {
	h.once.Do(func() {
		h.binPath, h.lookErr = exec.LookPath("antiword")
	})
	if h.lookErr != nil {
		return "", types.NewError(types.ErrDependencyMissing,
			"legacy .doc extraction requires the antiword binary; install it (e.g. `apt install antiword`) and retry")
	}

	out, err := exec.Command(h.binPath, filePath).Output()
	if err != nil {
		return "", types.WrapError(types.ErrUnsupportedFormat, err, "antiword failed to extract %s", filePath)
	}
	return string(out), nil
}
