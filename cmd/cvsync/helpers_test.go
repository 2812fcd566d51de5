package main

import (
	"bytes"
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/jonathan/cv-sync/internal/artifacts"
	"github.com/jonathan/cv-sync/internal/config"
	"github.com/jonathan/cv-sync/internal/server"
	"github.com/jonathan/cv-sync/internal/types"
)

const (
	testEmail    = "ana@example.com"
	testPassword = "correct horse battery"
	testSecret   = "cli-test-secret-0123456789"

	// unreachableURL refuses connections, so the engine starts offline.
	unreachableURL = "http://127.0.0.1:1"
)

type stubPrinter struct{}

func (stubPrinter) PrintPDF(_ context.Context, html string, _ types.PDFFormat) ([]byte, error) {
	return []byte("%PDF-1.4\n" + html), nil
}

// testEnv is a reference server plus a data directory for the CLI.
type testEnv struct {
	url     string
	mem     *server.MemoryDB
	userID  uuid.UUID
	dataDir string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	for _, key := range []string{"CVSYNC_SERVER_URL", "CVSYNC_TOKEN", "CVSYNC_DATA_DIR", "CVSYNC_PASSWORD"} {
		t.Setenv(key, "")
	}

	hs := httptest.NewUnstartedServer(nil)
	base := "http://" + hs.Listener.Addr().String()

	mem := server.NewMemoryDB(nil)
	srv, err := server.New(server.Config{
		DB:        mem,
		Store:     artifacts.NewLocal(t.TempDir(), base),
		Printer:   stubPrinter{},
		JWT:       &config.JWTConfig{Secret: testSecret, ExpirationHours: 1, Issuer: config.DefaultJWTIssuer},
		Passwords: &config.PasswordConfig{BcryptCost: bcrypt.MinCost},
	})
	require.NoError(t, err)
	t.Cleanup(srv.Close)

	user, err := srv.Users().Register(context.Background(), testEmail, testPassword)
	require.NoError(t, err)

	hs.Config.Handler = srv.Handler()
	hs.Start()
	t.Cleanup(hs.Close)

	return &testEnv{url: base, mem: mem, userID: user.ID, dataDir: t.TempDir()}
}

// run executes the CLI against the test server.
func (e *testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return e.runAt(t, e.url, args...)
}

// runAt executes the CLI against serverURL with the env's data directory.
func (e *testEnv) runAt(t *testing.T, serverURL string, args ...string) (string, error) {
	t.Helper()
	return runCLI(t, nil, append(args, "--server", serverURL, "--data-dir", e.dataDir)...)
}

func (e *testEnv) login(t *testing.T) {
	t.Helper()
	_, err := e.run(t, "login", "--email", testEmail, "--password", testPassword)
	require.NoError(t, err)
}

// remoteDocument returns the server copy, or nil when nothing was saved.
func (e *testEnv) remoteDocument(t *testing.T) *types.CVDocument {
	t.Helper()
	stored, err := e.mem.GetCV(context.Background(), e.userID)
	require.NoError(t, err)
	if stored == nil {
		return nil
	}
	return &stored.Document
}

// runCLI executes the root command in-process and returns stdout and stderr combined.
func runCLI(t *testing.T, stdin io.Reader, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	t.Cleanup(func() { resetFlags(rootCmd) })

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	if stdin == nil {
		stdin = strings.NewReader("")
	}
	rootCmd.SetIn(stdin)
	rootCmd.SetArgs(args)

	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

// resetFlags restores every flag to its default, since the command tree is shared across runs.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}
