// Package validate checks caller input and adapter output before it reaches the registry
package validate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ppiankov/kidregistry/internal/errs"
	"github.com/ppiankov/kidregistry/internal/model"
)

// Validator wraps go-playground/validator with registry-specific rules
type Validator struct {
	v         *validator.Validate
	authority *AuthorityClassifier
}

// New creates a validator; a nil classifier uses DefaultAuthorityConfig
func New(authority *AuthorityClassifier) *Validator {
	if authority == nil {
		authority = NewAuthorityClassifier(DefaultAuthorityConfig())
	}
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("roletag", func(fl validator.FieldLevel) bool {
		return model.RoleTag(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("risktag", func(fl validator.FieldLevel) bool {
		return model.RiskTag(fl.Field().String()).Valid()
	})
	_ = v.RegisterValidation("sourcetype", func(fl validator.FieldLevel) bool {
		return model.SourceType(fl.Field().String()).Valid()
	})
	return &Validator{v: v, authority: authority}
}

// Authority exposes the link classifier
func (v *Validator) Authority() *AuthorityClassifier { return v.authority }

// Submission validates a community report; failures carry errs.KindInvalid
func (v *Validator) Submission(s model.ReportSubmission) error {
	if strings.TrimSpace(s.SuspectName) == "" {
		return errs.Invalid("suspect_name", "suspect name is required")
	}
	if err := v.v.Struct(s); err != nil {
		return translate(err)
	}
	return nil
}

// Draft checks the CaseDraft invariants: non-empty masked name, a role from
// the closed set, at least one risk tag, and verified only for government
// notices whose link is not a media or community page.
func (v *Validator) Draft(d model.CaseDraft) error {
	if err := v.v.Struct(d); err != nil {
		return translate(err)
	}
	if d.Verified {
		if d.SourceType != model.SourceGovernmentNotice {
			return errs.Invalid("verified", fmt.Sprintf("%s records cannot be verified", d.SourceType))
		}
		if !v.authority.CanVerify(d.SourceLink) {
			return errs.Invalid("verified", "link is not an adjudicated or government source: "+d.SourceLink)
		}
	}
	return nil
}

func translate(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return errs.Invalid("input", err.Error())
	}
	fe := verrs[0]
	field := toSnake(fe.Field())
	switch fe.Tag() {
	case "required":
		return errs.Invalid(field, field+" is required")
	case "min":
		return errs.Invalid(field, fmt.Sprintf("%s must be at least %s characters", field, fe.Param()))
	case "max":
		return errs.Invalid(field, fmt.Sprintf("%s must be at most %s characters", field, fe.Param()))
	default:
		return errs.Invalid(field, fmt.Sprintf("%s failed %s", field, fe.Tag()))
	}
}

func toSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
