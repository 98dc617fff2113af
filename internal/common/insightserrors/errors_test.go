package insightserrors

import (
	"net/http"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

type fakeUpstreamError struct{}

func (fakeUpstreamError) Error() string           { return "upstream said no" }
func (fakeUpstreamError) UpstreamStatusCode() int { return http.StatusTeapot }

func TestHTTPStatusFromError(t *testing.T) {
	tests := map[string]struct {
		err  error
		want int
	}{
		"ErrNotFound":                           {&ErrNotFound{}, http.StatusNotFound},
		"ErrInvalidArgument":                    {&ErrInvalidArgument{}, http.StatusBadRequest},
		"ErrInvalidAggregation":                 {&ErrInvalidAggregation{Name: "median"}, http.StatusBadRequest},
		"ErrMissingRequiredFilter":              {&ErrMissingRequiredFilter{Missing: []string{"start_date"}}, http.StatusBadRequest},
		"pkg.Error => ErrNotFound":              {errors.WithMessage(&ErrNotFound{}, "foo"), http.StatusNotFound},
		"pkg.Error => ErrInvalidAggregation":    {errors.Wrap(&ErrInvalidAggregation{}, "foo"), http.StatusBadRequest},
		"pkg.Error => ErrMissingRequiredFilter": {errors.Wrap(&ErrMissingRequiredFilter{}, "foo"), http.StatusBadRequest},
		"upstream":                              {errors.Wrap(fakeUpstreamError{}, "fetch"), http.StatusBadGateway},
		"pkg.Error":                             {errors.New("foo"), http.StatusInternalServerError},
		"nil":                                   {nil, http.StatusOK},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, HTTPStatusFromError(tc.err))
		})
	}
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, `resource "rooms" of type "resource" does not exist`, (&ErrNotFound{Type: "resource", Value: "rooms"}).Error())
	assert.Equal(t, `resource "rooms" does not exist; try flowruns`, (&ErrNotFound{Value: "rooms", Message: "try flowruns"}).Error())
	assert.Equal(t, `value "x" is invalid for field "op_field"`, (&ErrInvalidArgument{Name: "op_field", Value: "x"}).Error())
	assert.Equal(t, `aggregation "median" is not supported; expected one of [count sum]`,
		(&ErrInvalidAggregation{Name: "median", Supported: []string{"count", "sum"}}).Error())
	assert.Equal(t, `vtex orders requires filters [start_date end_date]`,
		(&ErrMissingRequiredFilter{Service: "vtex orders", Missing: []string{"start_date", "end_date"}}).Error())
}
