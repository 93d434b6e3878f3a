package executor

import "fmt"

// Input-resolution error codes. They surface on tasks the same way provider
// errors do, since both occur inside one executor run.
const (
	CodeInvalidImageRef  = "INVALID_IMAGE_REF"
	CodeImageFetchFailed = "IMAGE_FETCH_FAILED"
)

// InputError reports a failure to resolve an image reference into bytes.
type InputError struct {
	Code    string
	Message string
	Details map[string]any
}

func (e *InputError) Error() string {
	return fmt.Sprintf("executor: %s: %s", e.Code, e.Message)
}
