package files

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/marmos91/dittofiles/pkg/hash"
	"github.com/mitchellh/mapstructure"
)

// FileInput is the client-supplied part of a File record, used as the body
// of Create and Update. Status, timestamps and the id are always set by the
// controller.
type FileInput struct {
	OwnerID string `json:"ownerId" mapstructure:"ownerId" validate:"required,max=255"`
	Size    int64  `json:"size" mapstructure:"size" validate:"gte=0"`
	Path    string `json:"path" mapstructure:"path" validate:"max=255,segments"`
	Name    string `json:"name" mapstructure:"name" validate:"required,max=255,excludes=/"`
	Hash    string `json:"hash,omitempty" mapstructure:"hash" validate:"omitempty,digest"`
}

// IsFolder reports whether the input describes a folder (no hash).
func (in FileInput) IsFolder() bool {
	return in.Hash == ""
}

// newValidator returns a validator that knows the "digest" tag for h and the
// "segments" tag for folder paths.
func newValidator(h hash.Hasher) *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Registration only fails for an empty tag or a nil function
	_ = v.RegisterValidation("digest", func(fl validator.FieldLevel) bool {
		return h.Valid(fl.Field().String())
	})
	_ = v.RegisterValidation("segments", func(fl validator.FieldLevel) bool {
		for _, seg := range SplitPath(fl.Field().String()) {
			if len(seg) > 255 || seg == "." || seg == ".." {
				return false
			}
		}
		return true
	})
	return v
}

// decodeInput converts a request body into a normalized, validated FileInput.
func (c *Controller) decodeInput(body any) (FileInput, error) {
	var in FileInput

	switch b := body.(type) {
	case nil:
		return in, &ValidationError{Message: MsgEmptyBody}
	case FileInput:
		in = b
	case *FileInput:
		if b == nil {
			return in, &ValidationError{Message: MsgEmptyBody}
		}
		in = *b
	case map[string]any:
		// Unknown keys (id, status, timestamps of a full record) are ignored
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result: &in,
		})
		if err != nil {
			return in, err
		}
		if err := dec.Decode(b); err != nil {
			return in, newValidationError("malformed body: %v", err)
		}
	default:
		return in, newValidationError("unsupported body type %T", body)
	}

	in.Path = JoinPath(SplitPath(in.Path))

	if err := c.validate.Struct(in); err != nil {
		return in, formatValidationError(err)
	}
	return in, nil
}

// formatValidationError reports the first failed field the way pkg/config does.
func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		e := validationErrs[0]
		return &ValidationError{
			Message: fmt.Sprintf("%s: validation failed on '%s' tag (value: %v)", e.Field(), e.Tag(), e.Value()),
		}
	}
	return &ValidationError{Message: err.Error()}
}
