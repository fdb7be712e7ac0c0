// Command pv is the trusted client for the PlanVault service. All key
// derivation and envelope encryption happens here; the server only ever
// sees the identity token, the verifier, the salt, and opaque ciphertext.
package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/degreelab/planvault/internal/crypto/clientcrypto"
)

// ---- local state ----

// stateFile holds what the client must remember between runs: the per-record
// salt fixed at registration and the current session cookie.
type stateFile struct {
	Salt          []byte    `json:"salt"`
	SessionCookie string    `json:"session_cookie,omitempty"`
	CookieExpires time.Time `json:"cookie_expires,omitempty"`
}

func cfgDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "planvault")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "planvault")
}

func statePath() string { return filepath.Join(cfgDir(), "state.json") }

func saveState(st stateFile) error {
	if err := os.MkdirAll(cfgDir(), 0o700); err != nil {
		return err
	}
	b, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(statePath(), b, 0o600)
}

func loadState() (stateFile, error) {
	var st stateFile
	b, err := os.ReadFile(statePath())
	if err != nil {
		return st, err
	}
	err = json.Unmarshal(b, &st)
	return st, err
}

// ---- wire shapes (mirror internal/server/httpapi) ----

type envelopeJSON struct {
	IV         []byte `json:"iv"`
	Ciphertext []byte `json:"ciphertext"`
}

type registerRequest struct {
	RawIdentity string       `json:"rawIdentity"`
	Verifier    []byte       `json:"verifier"`
	Salt        []byte       `json:"salt"`
	Envelope    envelopeJSON `json:"envelope"`
}

type loginRequest struct {
	RawIdentity string `json:"rawIdentity"`
	Verifier    []byte `json:"verifier"`
}

type profileResponse struct {
	IdentityToken    string       `json:"identityToken"`
	PasswordVerifier []byte       `json:"passwordVerifier"`
	Salt             []byte       `json:"salt"`
	Envelope         envelopeJSON `json:"envelope"`
}

type updateRequest struct {
	Envelope envelopeJSON `json:"envelope"`
}

// ---- http ----

const cookieName = "pv_session"

func doJSON(server, method, path, cookie string, body any) (*http.Response, []byte, error) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, nil, err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, server+path, rd)
	if err != nil {
		return nil, nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: cookieName, Value: cookie})
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()
	out, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	return resp, out, err
}

func sessionFromResponse(resp *http.Response) (string, time.Time) {
	for _, c := range resp.Cookies() {
		if c.Name == cookieName {
			return c.Value, c.Expires
		}
	}
	return "", time.Time{}
}

// ---- commands ----

func cmdRegister(server, identity, password, profilePath string) error {
	profile, err := os.ReadFile(profilePath)
	if err != nil {
		return fmt.Errorf("read profile: %w", err)
	}
	if !json.Valid(profile) {
		return errors.New("profile must be valid JSON")
	}

	salt, err := clientcrypto.Rand(clientcrypto.SaltLen)
	if err != nil {
		return err
	}
	verifier, err := clientcrypto.Verifier([]byte(password), salt)
	if err != nil {
		return err
	}
	key, err := clientcrypto.DeriveKey([]byte(password), salt)
	if err != nil {
		return err
	}
	iv, ct, err := clientcrypto.Encrypt(key, profile)
	if err != nil {
		return err
	}

	resp, body, err := doJSON(server, http.MethodPost, "/api/auth/register", "", registerRequest{
		RawIdentity: identity,
		Verifier:    verifier,
		Salt:        salt,
		Envelope:    envelopeJSON{IV: iv, Ciphertext: ct},
	})
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("register failed: %s: %s", resp.Status, body)
	}
	if err := saveState(stateFile{Salt: salt}); err != nil {
		return err
	}
	fmt.Println("registered")
	return nil
}

func cmdLogin(server, identity, password string) error {
	st, err := loadState()
	if err != nil {
		return errors.New("no local state (register on this machine first)")
	}
	verifier, err := clientcrypto.Verifier([]byte(password), st.Salt)
	if err != nil {
		return err
	}
	resp, body, err := doJSON(server, http.MethodPost, "/api/auth/login", "", loginRequest{
		RawIdentity: identity,
		Verifier:    verifier,
	})
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("login failed: %s: %s", resp.Status, body)
	}
	st.SessionCookie, st.CookieExpires = sessionFromResponse(resp)
	if st.SessionCookie == "" {
		return errors.New("server did not set a session cookie")
	}
	if err := saveState(st); err != nil {
		return err
	}
	fmt.Println("logged in")
	return nil
}

func cmdFetch(server, password string) error {
	st, err := loadState()
	if err != nil {
		return errors.New("no local state (login first)")
	}
	resp, body, err := doJSON(server, http.MethodGet, "/api/profile", st.SessionCookie, nil)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch failed: %s: %s", resp.Status, body)
	}
	var pr profileResponse
	if err := json.Unmarshal(body, &pr); err != nil {
		return err
	}

	// Client-local optimization: confirm the password against the verifier
	// before paying for decryption.
	verifier, err := clientcrypto.Verifier([]byte(password), pr.Salt)
	if err != nil {
		return err
	}
	if !bytes.Equal(verifier, pr.PasswordVerifier) {
		return errors.New("password does not match stored verifier")
	}

	key, err := clientcrypto.DeriveKey([]byte(password), pr.Salt)
	if err != nil {
		return err
	}
	plaintext, err := clientcrypto.Decrypt(key, pr.Envelope.IV, pr.Envelope.Ciphertext)
	if err != nil {
		return fmt.Errorf("decrypt: %w", err)
	}

	// Keep the authoritative salt around for later updates.
	st.Salt = pr.Salt
	_ = saveState(st)

	_, err = os.Stdout.Write(append(plaintext, '\n'))
	return err
}

func cmdUpdate(server, password, profilePath string) error {
	st, err := loadState()
	if err != nil {
		return errors.New("no local state (login first)")
	}
	profile, err := os.ReadFile(profilePath)
	if err != nil {
		return fmt.Errorf("read profile: %w", err)
	}
	if !json.Valid(profile) {
		return errors.New("profile must be valid JSON")
	}
	key, err := clientcrypto.DeriveKey([]byte(password), st.Salt)
	if err != nil {
		return err
	}
	iv, ct, err := clientcrypto.Encrypt(key, profile)
	if err != nil {
		return err
	}
	resp, body, err := doJSON(server, http.MethodPut, "/api/profile", st.SessionCookie, updateRequest{
		Envelope: envelopeJSON{IV: iv, Ciphertext: ct},
	})
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("update failed: %s: %s", resp.Status, body)
	}
	fmt.Println("updated")
	return nil
}

func cmdLogout(server string) error {
	st, err := loadState()
	if err != nil {
		return nil // nothing to log out
	}
	_, _, _ = doJSON(server, http.MethodPost, "/api/auth/logout", st.SessionCookie, nil)
	st.SessionCookie, st.CookieExpires = "", time.Time{}
	if err := saveState(st); err != nil {
		return err
	}
	fmt.Println("logged out")
	return nil
}

func cmdDelete(server string) error {
	st, err := loadState()
	if err != nil {
		return errors.New("no local state (login first)")
	}
	resp, body, err := doJSON(server, http.MethodDelete, "/api/profile", st.SessionCookie, nil)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("delete failed: %s: %s", resp.Status, body)
	}
	st.SessionCookie, st.CookieExpires = "", time.Time{}
	_ = saveState(st)
	fmt.Println("account deleted")
	return nil
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: pv -server URL <command> [flags]

commands:
  register -identity ID -password PW -profile FILE
  login    -identity ID -password PW
  fetch    -password PW
  update   -password PW -profile FILE
  logout
  delete`)
	os.Exit(2)
}

func main() {
	server := flag.String("server", "http://localhost:8080", "server base URL")
	flag.Parse()
	if flag.NArg() < 1 {
		usage()
	}

	cmd := flag.Arg(0)
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	identity := fs.String("identity", "", "raw identity (student username)")
	password := fs.String("password", "", "password")
	profile := fs.String("profile", "", "profile JSON file")
	_ = fs.Parse(flag.Args()[1:])

	var err error
	switch cmd {
	case "register":
		err = cmdRegister(*server, *identity, *password, *profile)
	case "login":
		err = cmdLogin(*server, *identity, *password)
	case "fetch":
		err = cmdFetch(*server, *password)
	case "update":
		err = cmdUpdate(*server, *password, *profile)
	case "logout":
		err = cmdLogout(*server)
	case "delete":
		err = cmdDelete(*server)
	default:
		usage()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
