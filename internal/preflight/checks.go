package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"xnatflow/internal/services"
	"xnatflow/internal/xnat"
)

const checkTimeout = 10 * time.Second

// Authenticator is the slice of the XNAT client CheckXNAT exercises.
type Authenticator interface {
	Obtain(ctx context.Context) (xnat.Session, error)
	CloseSession(ctx context.Context, session xnat.Session) error
}

// CheckXNAT verifies that the configured account can log in. The session it
// opens is closed again; a close failure is reported but still counts as a
// pass because login is what pipeline runs need.
func CheckXNAT(ctx context.Context, client Authenticator, baseURL string) Result {
	const name = "XNAT"
	if client == nil {
		return Result{Name: name, Detail: "client not configured"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	session, err := client.Obtain(checkCtx)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (login failed: %s)", baseURL, summarizeError(err))}
	}
	if err := client.CloseSession(checkCtx, session); err != nil {
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (login ok, close failed: %s)", baseURL, summarizeError(err))}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (login ok)", baseURL)}
}

// CheckMailRelay verifies that the SMTP relay accepts TCP connections.
func CheckMailRelay(ctx context.Context, addr string) Result {
	const name = "Mail relay"
	if addr == "" {
		return Result{Name: name, Detail: "missing relay address"}
	}

	dialer := net.Dialer{Timeout: checkTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (unreachable: %v)", addr, err)}
	}
	_ = conn.Close()
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (reachable)", addr)}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	if path == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

func summarizeError(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timed out"
	case errors.Is(err, services.ErrAuthentication):
		return "authentication rejected or server unreachable"
	case errors.Is(err, services.ErrRPCFault):
		return "server fault"
	case errors.Is(err, services.ErrRPCTransport):
		return "transport error"
	default:
		return err.Error()
	}
}
