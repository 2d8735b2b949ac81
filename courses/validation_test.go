package courses_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-elearning-portal/courses"
)

func TestValidateInput(t *testing.T) {
	tests := []struct {
		name              string
		in                courses.Input
		requireInstructor bool
		wantFields        []string
	}{
		{"complete", courses.Input{Title: "Go", Description: "Intro", Instructor: "Ana"}, true, nil},
		{"instructor optional by default", courses.Input{Title: "Go", Description: "Intro"}, false, nil},
		{"blank title", courses.Input{Title: "", Description: "Intro"}, false, []string{"title"}},
		{"whitespace is blank", courses.Input{Title: "Go", Description: "  \t"}, false, []string{"description"}},
		{"instructor required", courses.Input{Title: "Go", Description: "Intro", Instructor: " "}, true, []string{"instructor"}},
		{"everything missing", courses.Input{}, true, []string{"title", "description", "instructor"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := courses.ValidateInput(tt.in, tt.requireInstructor)
			if tt.wantFields == nil {
				require.NoError(t, err)
				return
			}

			var verr *courses.ValidationError
			require.ErrorAs(t, err, &verr)
			got := make([]string, 0, len(verr.Fields))
			for _, f := range verr.Fields {
				got = append(got, f.Field)
			}
			require.Equal(t, tt.wantFields, got)
		})
	}

	t.Run("messages use json names", func(t *testing.T) {
		err := courses.ValidateInput(courses.Input{Description: "d"}, false)
		var verr *courses.ValidationError
		require.ErrorAs(t, err, &verr)
		require.Equal(t, "title cannot be blank", verr.Field("title"))
		require.Empty(t, verr.Field("description"))
	})
}
