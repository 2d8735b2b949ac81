package cmd

import (
	"bytes"
	"context"
	"net/http"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-elearning-portal/courses"
	portalerrors "github.com/jrsteele09/go-elearning-portal/internal/errors"
	"github.com/jrsteele09/go-elearning-portal/internal/idptest"
	"github.com/jrsteele09/go-elearning-portal/session"
)

const testSessionKey = "correct horse battery staple"

type cliFixture struct {
	provider *idptest.Provider
	backend  *idptest.Backend
	dsn      string
}

// newCLI points the portal environment at a test provider and backend with
// a sqlite session slot.
func newCLI(t *testing.T) *cliFixture {
	t.Helper()

	f := &cliFixture{
		provider: idptest.NewProvider(t, "react-client"),
		backend:  idptest.NewBackend(t),
		dsn:      "file:" + filepath.Join(t.TempDir(), "session.db"),
	}
	f.backend.SetAuthorizer(f.provider.ValidAccessToken)

	for k, v := range map[string]string{
		"PORTAL_ENV":             "TEST",
		"PORTAL_LOG_LEVEL":       "error",
		"PORTAL_ISSUER_URL":      f.provider.Issuer(),
		"PORTAL_CLIENT_ID":       "react-client",
		"PORTAL_API_BASE_URL":    f.backend.URL(),
		"PORTAL_PERSIST_SESSION": "true",
		"PORTAL_SESSION_KEY":     testSessionKey,
		"PORTAL_SESSION_DSN":     f.dsn,
	} {
		t.Setenv(k, v)
	}
	return f
}

// signIn persists a session as 'portal serve' would after a login.
func (f *cliFixture) signIn(t *testing.T) {
	t.Helper()

	p, closeFn, err := openPersister(testConfig(t, map[string]any{
		"persist_session": true,
		"session_key":     testSessionKey,
		"session_dsn":     f.dsn,
		"client_id":       "react-client",
	}))
	require.NoError(t, err)
	defer closeFn()

	minted := f.provider.Mint(t)
	require.NoError(t, p.Save(context.Background(), session.Session{
		AccessToken:      minted.AccessToken,
		RefreshToken:     minted.RefreshToken,
		IDToken:          minted.IDToken,
		ExpiresAt:        time.Now().Add(5 * time.Minute),
		RefreshExpiresAt: time.Now().Add(30 * time.Minute),
		Authenticated:    true,
	}))
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.Execute()
	return out.String(), err
}

func TestWhoami(t *testing.T) {
	f := newCLI(t)

	t.Run("without a persisted session", func(t *testing.T) {
		_, err := runCLI(t, "whoami")
		require.ErrorIs(t, err, portalerrors.ErrNotAuthenticated)
	})

	t.Run("signed in", func(t *testing.T) {
		f.signIn(t)
		f.backend.SetRoles("admin")

		out, err := runCLI(t, "whoami")
		require.NoError(t, err)
		require.Regexp(t, regexp.MustCompile(`Name\s+Ada Lovelace`), out)
		require.Regexp(t, regexp.MustCompile(`Email\s+ada@example.com`), out)
		require.Regexp(t, regexp.MustCompile(`Roles\s+admin`), out)
		require.Regexp(t, regexp.MustCompile(`Manage courses\s+true`), out)
	})
}

func TestCoursesList(t *testing.T) {
	f := newCLI(t)
	f.signIn(t)
	f.backend.Seed(
		idptest.Course{Title: "Go", Description: "Intro", Instructor: "Ana"},
		idptest.Course{Title: "Rust", Description: "Ownership", Instructor: "Ben"},
	)

	out, err := runCLI(t, "courses", "list")
	require.NoError(t, err)
	require.Regexp(t, regexp.MustCompile(`ID\s+TITLE\s+INSTRUCTOR`), out)
	require.Regexp(t, regexp.MustCompile(`1\s+Go\s+Ana`), out)
	require.Regexp(t, regexp.MustCompile(`2\s+Rust\s+Ben`), out)
}

func TestCoursesList_Forbidden(t *testing.T) {
	f := newCLI(t)
	f.signIn(t)
	f.backend.Fail("GET /api/courses", http.StatusForbidden, "")

	_, err := runCLI(t, "courses", "list")
	var authErr *courses.AuthorizationError
	require.ErrorAs(t, err, &authErr)
}

func TestCoursesCreate(t *testing.T) {
	f := newCLI(t)
	f.signIn(t)

	out, err := runCLI(t, "courses", "create", "--title", "Zig", "--description", "Comptime", "--instructor", "Cy")
	require.NoError(t, err)
	require.Contains(t, out, "created course 1: Zig")

	stored := f.backend.Courses()
	require.Len(t, stored, 1)
	require.Equal(t, idptest.Course{ID: 1, Title: "Zig", Description: "Comptime", Instructor: "Cy"}, stored[0])
}

func TestCoursesGetSearchUpdateDelete(t *testing.T) {
	f := newCLI(t)
	f.signIn(t)
	f.backend.Seed(
		idptest.Course{Title: "Go", Description: "Intro", Instructor: "Ana"},
		idptest.Course{Title: "Rust", Description: "Ownership", Instructor: "Ben"},
	)

	out, err := runCLI(t, "courses", "get", "2")
	require.NoError(t, err)
	require.Regexp(t, regexp.MustCompile(`Title\s+Rust`), out)
	require.Regexp(t, regexp.MustCompile(`Description\s+Ownership`), out)

	out, err = runCLI(t, "courses", "search", "ru")
	require.NoError(t, err)
	require.Contains(t, out, "Rust")
	require.NotContains(t, out, "Ana")

	out, err = runCLI(t, "courses", "search", "--instructor", "Ana")
	require.NoError(t, err)
	require.Regexp(t, regexp.MustCompile(`1\s+Go\s+Ana`), out)
	require.NotContains(t, out, "Rust")

	out, err = runCLI(t, "courses", "update", "1", "--title", "Go 2")
	require.NoError(t, err)
	require.Contains(t, out, "updated course 1: Go 2")
	require.Equal(t, idptest.Course{ID: 1, Title: "Go 2", Description: "Intro", Instructor: "Ana"}, f.backend.Courses()[0])

	out, err = runCLI(t, "courses", "delete", "2")
	require.NoError(t, err)
	require.Contains(t, out, "deleted course 2")
	require.Len(t, f.backend.Courses(), 1)

	_, err = runCLI(t, "courses", "get", "abc")
	require.ErrorContains(t, err, "invalid course id")
}
