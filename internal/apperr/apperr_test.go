package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusMapping(t *testing.T) {
	cases := map[*Error]int{
		Validation(FieldErrors{"x": {"bad"}}): 400,
		InvalidState("closed"):                400,
		Unauthenticated("who"):                401,
		Forbidden("no"):                       403,
		NotFound("gone"):                      404,
		Conflict("dup"):                       409,
		RateLimited("slow down"):              429,
		Internal(errors.New("db down")):       500,
	}
	for e, want := range cases {
		assert.Equal(t, want, e.Status(), string(e.Kind))
	}
}

func TestKindOfWrapped(t *testing.T) {
	err := fmt.Errorf("apply: %w", Conflict("already applied"))
	assert.Equal(t, KindConflict, KindOf(err))
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
	assert.Equal(t, KindInternal, As(errors.New("plain")).Kind)
}

func TestFieldErrorsAdd(t *testing.T) {
	f := FieldErrors{}
	f.Add("email", "required")
	f.Add("email", "invalid")
	assert.Equal(t, []string{"required", "invalid"}, f["email"])
}
