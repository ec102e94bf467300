package bus

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"
)

func TestPidManagerBasics(t *testing.T) {
	tempDir := t.TempDir()

	testPidManager := &pidManager{
		path: filepath.Join(tempDir, PidName),
	}

	t.Run("create and remove PID file", func(t *testing.T) {
		err := testPidManager.create()
		if err != nil {
			t.Fatalf("create failed: %v", err)
		}

		pidData, err := os.ReadFile(testPidManager.path)
		if err != nil {
			t.Fatalf("failed to read PID file: %v", err)
		}

		expectedPid := strconv.Itoa(os.Getpid())
		if string(pidData) != expectedPid {
			t.Errorf("PID file contains %q, expected %q", string(pidData), expectedPid)
		}

		err = testPidManager.remove()
		if err != nil {
			t.Fatalf("remove failed: %v", err)
		}

		if _, err := os.Stat(testPidManager.path); !os.IsNotExist(err) {
			t.Error("PID file should not exist after removal")
		}
	})

	t.Run("checkExisting with no PID file", func(t *testing.T) {
		err := testPidManager.checkExisting()
		if err != nil {
			t.Errorf("checkExisting should not error when no PID file exists: %v", err)
		}
	})

	t.Run("checkExisting with current process", func(t *testing.T) {
		err := testPidManager.create()
		if err != nil {
			t.Fatalf("create failed: %v", err)
		}
		defer testPidManager.remove()

		err = testPidManager.checkExisting()
		if err == nil {
			t.Error("checkExisting should fail when process is running")
		}
	})

	t.Run("checkExisting with stale PID file", func(t *testing.T) {
		stalePid := "99999"
		err := os.WriteFile(testPidManager.path, []byte(stalePid), 0o600)
		if err != nil {
			t.Fatalf("failed to write stale PID file: %v", err)
		}

		err = testPidManager.checkExisting()
		if err != nil {
			t.Errorf("checkExisting should succeed with stale PID: %v", err)
		}

		if _, err := os.Stat(testPidManager.path); !os.IsNotExist(err) {
			t.Error("stale PID file should be removed")
		}
	})

	t.Run("checkExisting with invalid PID file", func(t *testing.T) {
		err := os.WriteFile(testPidManager.path, []byte("invalid"), 0o600)
		if err != nil {
			t.Fatalf("failed to write invalid PID file: %v", err)
		}

		err = testPidManager.checkExisting()
		if err != nil {
			t.Errorf("checkExisting should succeed with invalid PID: %v", err)
		}

		if _, err := os.Stat(testPidManager.path); !os.IsNotExist(err) {
			t.Error("invalid PID file should be removed")
		}
	})
}

func TestIsProcessAlive(t *testing.T) {
	pm := &pidManager{}

	t.Run("current process", func(t *testing.T) {
		if !pm.isProcessAlive(os.Getpid()) {
			t.Error("current process should be alive")
		}
	})

	t.Run("non-existent process", func(t *testing.T) {
		// Use a PID that's very unlikely to exist
		if pm.isProcessAlive(99999) {
			t.Error("non-existent process should not be alive")
		}
	})
}

func TestSocketManagerBasics(t *testing.T) {
	tempDir := t.TempDir()

	testSocketManager := &socketManager{
		path: filepath.Join(tempDir, SockName),
	}

	t.Run("listen and dial", func(t *testing.T) {
		listener, err := testSocketManager.listen()
		if err != nil {
			t.Fatalf("listen failed: %v", err)
		}
		defer listener.Close()

		connCh := make(chan error, 1)
		go func() {
			conn, err := listener.Accept()
			if err != nil {
				connCh <- err
				return
			}
			defer conn.Close()

			// Echo back what we receive
			buf := make([]byte, 1024)
			n, err := conn.Read(buf)
			if err != nil {
				connCh <- err
				return
			}

			_, err = conn.Write(buf[:n])
			connCh <- err
		}()

		time.Sleep(10 * time.Millisecond)

		conn, err := testSocketManager.dial()
		if err != nil {
			t.Fatalf("dial failed: %v", err)
		}
		defer conn.Close()

		testMsg := "hello"
		_, err = conn.Write([]byte(testMsg))
		if err != nil {
			t.Fatalf("write failed: %v", err)
		}

		buf := make([]byte, 1024)
		n, err := conn.Read(buf)
		if err != nil {
			t.Fatalf("read failed: %v", err)
		}

		if string(buf[:n]) != testMsg {
			t.Errorf("got %q, expected %q", string(buf[:n]), testMsg)
		}

		if err := <-connCh; err != nil {
			t.Errorf("background connection error: %v", err)
		}
	})

	t.Run("dial without listener", func(t *testing.T) {
		noListener := &socketManager{path: filepath.Join(tempDir, "absent.sock")}
		if _, err := noListener.dial(); err == nil {
			t.Error("dial should fail when no listener exists")
		}
	})

	t.Run("listen replaces stale socket", func(t *testing.T) {
		first, err := testSocketManager.listen()
		if err != nil {
			t.Fatalf("first listen failed: %v", err)
		}
		first.Close()

		// The socket file may linger after close; listen must still work.
		second, err := testSocketManager.listen()
		if err != nil {
			t.Fatalf("second listen failed: %v", err)
		}
		second.Close()
	})
}

func TestSendCommandIntegration(t *testing.T) {
	tempDir := t.TempDir()

	testSocketManager := &socketManager{
		path: filepath.Join(tempDir, SockName),
	}

	t.Run("command round trip with mock server", func(t *testing.T) {
		listener, err := testSocketManager.listen()
		if err != nil {
			t.Fatalf("listen failed: %v", err)
		}
		defer listener.Close()

		go func() {
			for {
				conn, err := listener.Accept()
				if err != nil {
					return
				}
				go func(c net.Conn) {
					defer c.Close()

					buf := make([]byte, 2)
					n, err := c.Read(buf)
					if err != nil || n != 2 {
						return
					}

					switch buf[0] {
					case CmdToggle:
						fmt.Fprint(c, "OK recording\n")
					case CmdPause:
						fmt.Fprint(c, "OK paused\n")
					case CmdStatus:
						fmt.Fprint(c, "STATUS status=idle\n")
					case CmdVersion:
						fmt.Fprintf(c, "STATUS proto=%s\n", ProtoVer)
					case CmdQuit:
						fmt.Fprint(c, "OK quitting\n")
					default:
						fmt.Fprintf(c, "ERR unknown=%q\n", buf[0])
					}
				}(conn)
			}
		}()

		time.Sleep(10 * time.Millisecond)

		tests := []struct {
			cmd      byte
			expected string
		}{
			{CmdToggle, "OK recording\n"},
			{CmdPause, "OK paused\n"},
			{CmdStatus, "STATUS status=idle\n"},
			{CmdVersion, fmt.Sprintf("STATUS proto=%s\n", ProtoVer)},
			{CmdQuit, "OK quitting\n"},
			{'x', "ERR unknown='x'\n"},
		}

		for _, tt := range tests {
			conn, err := testSocketManager.dial()
			if err != nil {
				t.Errorf("dial failed for command %c: %v", tt.cmd, err)
				continue
			}

			_, err = conn.Write([]byte{tt.cmd, '\n'})
			if err != nil {
				conn.Close()
				t.Errorf("write failed for command %c: %v", tt.cmd, err)
				continue
			}

			buf := make([]byte, 1024)
			n, err := conn.Read(buf)
			conn.Close()

			if err != nil {
				t.Errorf("read failed for command %c: %v", tt.cmd, err)
				continue
			}

			resp := string(buf[:n])
			if resp != tt.expected {
				t.Errorf("command %c: got %q, expected %q", tt.cmd, resp, tt.expected)
			}
		}
	})
}

func TestPathFunctions(t *testing.T) {
	t.Run("SockPath", func(t *testing.T) {
		path, err := SockPath()
		if err != nil {
			t.Fatalf("SockPath failed: %v", err)
		}

		if !filepath.IsAbs(path) {
			t.Error("SockPath should return absolute path")
		}
		if filepath.Base(path) != SockName {
			t.Errorf("SockPath should end with %s, got %s", SockName, filepath.Base(path))
		}
	})

	t.Run("getPidPath", func(t *testing.T) {
		path, err := getPidPath()
		if err != nil {
			t.Fatalf("getPidPath failed: %v", err)
		}

		if !filepath.IsAbs(path) {
			t.Error("getPidPath should return absolute path")
		}
		if filepath.Base(path) != PidName {
			t.Errorf("getPidPath should end with %s, got %s", PidName, filepath.Base(path))
		}
	})
}

func TestConstants(t *testing.T) {
	if SockName == "" {
		t.Error("SockName should not be empty")
	}
	if PidName == "" {
		t.Error("PidName should not be empty")
	}
	if ProtoVer == "" {
		t.Error("ProtoVer should not be empty")
	}

	cmds := []byte{CmdToggle, CmdPause, CmdResume, CmdStatus, CmdTranscript, CmdRetryFailed, CmdVersion, CmdQuit}
	seen := make(map[byte]bool)
	for _, c := range cmds {
		if seen[c] {
			t.Errorf("duplicate command byte %q", c)
		}
		seen[c] = true
	}
}
