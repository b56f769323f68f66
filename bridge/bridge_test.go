// Copyright 2026 The Gantry Authors
// SPDX-License-Identifier: Apache-2.0

package bridge_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/gantry-foundation/gantry/bridge"
	"github.com/gantry-foundation/gantry/lib/identity"
	"github.com/gantry-foundation/gantry/lib/ref"
	"github.com/gantry-foundation/gantry/messaging"
	"github.com/gantry-foundation/gantry/remote"
	"github.com/gantry-foundation/gantry/store"
)

const (
	testServerName = "example.com"
	testASToken    = "as_test_token"
)

// profileWrite is one recorded displayname or avatar_url PUT.
type profileWrite struct {
	userID string // from the request path
	field  string // "displayname" or "avatar_url"
	value  string
	asUser string // user_id query parameter (impersonation)
}

type loginWrite struct {
	loginType string
	user      string
	password  string
}

type noticeWrite struct {
	roomID  string
	msgType string
	body    string
	asUser  string
}

// fakeHomeserver records every appservice call a test drives through
// the bridge. All mutators and accessors are safe for concurrent use;
// responses follow the client-server API closely enough for the
// messaging package to parse them.
type fakeHomeserver struct {
	t *testing.T

	mu            sync.Mutex
	requestsSeen  int
	registrations []string // usernames, in order
	profiles      []profileWrite
	uploadsSeen   []string // MIME types, in order
	logins        []loginWrite
	noticesSeen   []noticeWrite

	failProfileWrites int    // fail the next N profile PUTs with M_FORBIDDEN
	loginAs           string // overrides the user_id in login responses
}

func newFakeHomeserver(t *testing.T) *fakeHomeserver {
	return &fakeHomeserver{t: t}
}

func (f *fakeHomeserver) handler() http.HandlerFunc {
	return func(writer http.ResponseWriter, request *http.Request) {
		f.mu.Lock()
		f.requestsSeen++
		f.mu.Unlock()

		path := request.URL.Path
		switch {
		case request.Method == http.MethodPost && path == "/_matrix/client/v3/register":
			f.handleRegister(writer, request)
		case request.Method == http.MethodPut && strings.HasPrefix(path, "/_matrix/client/v3/profile/"):
			f.handleProfileWrite(writer, request)
		case request.Method == http.MethodPost && path == "/_matrix/media/v3/upload":
			f.handleUpload(writer, request)
		case request.Method == http.MethodPost && path == "/_matrix/client/v3/login":
			f.handleLogin(writer, request)
		case request.Method == http.MethodPut && strings.HasPrefix(path, "/_matrix/client/v3/rooms/"):
			f.handleSend(writer, request)
		default:
			f.t.Errorf("fake homeserver: unexpected request %s %s", request.Method, path)
			writeJSON(writer, http.StatusNotFound,
				map[string]string{"errcode": "M_NOT_FOUND", "error": "unhandled path"})
		}
	}
}

func (f *fakeHomeserver) handleRegister(writer http.ResponseWriter, request *http.Request) {
	var body struct {
		Type     string `json:"type"`
		Username string `json:"username"`
	}
	if err := json.NewDecoder(request.Body).Decode(&body); err != nil {
		f.t.Errorf("fake homeserver: decode register body: %v", err)
	}

	f.mu.Lock()
	seen := false
	for _, existing := range f.registrations {
		if existing == body.Username {
			seen = true
			break
		}
	}
	f.registrations = append(f.registrations, body.Username)
	f.mu.Unlock()

	if seen {
		writeJSON(writer, http.StatusBadRequest,
			map[string]string{"errcode": "M_USER_IN_USE", "error": "already taken"})
		return
	}
	writeJSON(writer, http.StatusOK,
		map[string]string{"user_id": "@" + body.Username + ":" + testServerName})
}

func (f *fakeHomeserver) handleProfileWrite(writer http.ResponseWriter, request *http.Request) {
	// .../profile/{userID}/{field}; the localpart may itself contain
	// slashes, so split at the last one.
	rest := strings.TrimPrefix(request.URL.Path, "/_matrix/client/v3/profile/")
	slash := strings.LastIndex(rest, "/")
	if slash < 0 {
		f.t.Errorf("fake homeserver: malformed profile path %q", request.URL.Path)
		return
	}
	write := profileWrite{
		userID: rest[:slash],
		field:  rest[slash+1:],
		asUser: request.URL.Query().Get("user_id"),
	}
	var body map[string]string
	if err := json.NewDecoder(request.Body).Decode(&body); err != nil {
		f.t.Errorf("fake homeserver: decode profile body: %v", err)
	}
	write.value = body[write.field]

	f.mu.Lock()
	f.profiles = append(f.profiles, write)
	fail := f.failProfileWrites > 0
	if fail {
		f.failProfileWrites--
	}
	f.mu.Unlock()

	if fail {
		writeJSON(writer, http.StatusForbidden,
			map[string]string{"errcode": "M_FORBIDDEN", "error": "profile writes disabled"})
		return
	}
	writeJSON(writer, http.StatusOK, map[string]string{})
}

func (f *fakeHomeserver) handleUpload(writer http.ResponseWriter, request *http.Request) {
	f.mu.Lock()
	f.uploadsSeen = append(f.uploadsSeen, request.Header.Get("Content-Type"))
	mediaID := fmt.Sprintf("media%d", len(f.uploadsSeen))
	f.mu.Unlock()

	writeJSON(writer, http.StatusOK,
		map[string]string{"content_uri": "mxc://" + testServerName + "/" + mediaID})
}

func (f *fakeHomeserver) handleLogin(writer http.ResponseWriter, request *http.Request) {
	var body struct {
		Type       string `json:"type"`
		Identifier struct {
			User string `json:"user"`
		} `json:"identifier"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(request.Body).Decode(&body); err != nil {
		f.t.Errorf("fake homeserver: decode login body: %v", err)
	}

	f.mu.Lock()
	f.logins = append(f.logins, loginWrite{
		loginType: body.Type,
		user:      body.Identifier.User,
		password:  body.Password,
	})
	loggedIn := f.loginAs
	f.mu.Unlock()

	if loggedIn == "" {
		loggedIn = body.Identifier.User
	}
	writeJSON(writer, http.StatusOK, map[string]string{
		"user_id":      loggedIn,
		"access_token": "syt_test_token",
		"device_id":    "GANTRYTEST",
	})
}

func (f *fakeHomeserver) handleSend(writer http.ResponseWriter, request *http.Request) {
	// .../rooms/{roomID}/send/m.room.message/{txnID}
	rest := strings.TrimPrefix(request.URL.Path, "/_matrix/client/v3/rooms/")
	roomID, _, found := strings.Cut(rest, "/send/m.room.message/")
	if !found {
		f.t.Errorf("fake homeserver: malformed send path %q", request.URL.Path)
		return
	}
	var body struct {
		MsgType string `json:"msgtype"`
		Body    string `json:"body"`
	}
	if err := json.NewDecoder(request.Body).Decode(&body); err != nil {
		f.t.Errorf("fake homeserver: decode message body: %v", err)
	}

	f.mu.Lock()
	f.noticesSeen = append(f.noticesSeen, noticeWrite{
		roomID:  roomID,
		msgType: body.MsgType,
		body:    body.Body,
		asUser:  request.URL.Query().Get("user_id"),
	})
	eventID := fmt.Sprintf("$event%d", len(f.noticesSeen))
	f.mu.Unlock()

	writeJSON(writer, http.StatusOK, map[string]string{"event_id": eventID})
}

func (f *fakeHomeserver) requests() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requestsSeen
}

func (f *fakeHomeserver) registered() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.registrations...)
}

// writes returns the recorded profile PUTs for one user and field, in
// order.
func (f *fakeHomeserver) writes(userID, field string) []profileWrite {
	f.mu.Lock()
	defer f.mu.Unlock()
	var matched []profileWrite
	for _, write := range f.profiles {
		if write.userID == userID && write.field == field {
			matched = append(matched, write)
		}
	}
	return matched
}

func (f *fakeHomeserver) uploads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.uploadsSeen)
}

func (f *fakeHomeserver) loginsSeen() []loginWrite {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]loginWrite(nil), f.logins...)
}

func (f *fakeHomeserver) notices() []noticeWrite {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]noticeWrite(nil), f.noticesSeen...)
}

func (f *fakeHomeserver) setFailProfileWrites(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failProfileWrites = n
}

func (f *fakeHomeserver) setLoginAs(userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loginAs = userID
}

func writeJSON(writer http.ResponseWriter, status int, value any) {
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(status)
	if err := json.NewEncoder(writer).Encode(value); err != nil {
		panic(err)
	}
}

// fakeFetcher serves remote avatar bytes from memory and counts reads
// per URL so tests can assert cache hits skipped the network.
type fakeFetcher struct {
	mu     sync.Mutex
	images map[string]*remote.ImageData
	reads  map[string]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		images: make(map[string]*remote.ImageData),
		reads:  make(map[string]int),
	}
}

func (f *fakeFetcher) ReadImage(ctx context.Context, url string) (*remote.ImageData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads[url]++
	data, ok := f.images[url]
	if !ok {
		return nil, fmt.Errorf("fake fetcher: no image at %q", url)
	}
	return &remote.ImageData{Bytes: append([]byte(nil), data.Bytes...), MIME: data.MIME}, nil
}

func (f *fakeFetcher) serve(url, mime string, content []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.images[url] = &remote.ImageData{Bytes: content, MIME: mime}
}

func (f *fakeFetcher) readCount(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads[url]
}

// openTestStore opens a store over a fresh temporary database, closed
// when the test finishes.
func openTestStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.Open(store.Config{
		Path:     filepath.Join(t.TempDir(), "gantry_test.db"),
		PoolSize: 2,
	})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return s
}

// harness wires a registry to a fake homeserver and a real store. The
// default uses the username template "line_{id}" on example.com and
// the identity displayname template "{name}".
type harness struct {
	fake       *fakeHomeserver
	fetcher    *fakeFetcher
	store      *store.Store
	client     *messaging.Client
	appservice *messaging.AppService
	registry   *bridge.Registry
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessAt(t, openTestStore(t), "{name}")
}

// newHarnessAt builds a harness over a caller-owned store, for tests
// that close the store themselves or pre-seed rows, and with a custom
// displayname template.
func newHarnessAt(t *testing.T, st *store.Store, displaynameTemplate string) *harness {
	t.Helper()

	fake := newFakeHomeserver(t)
	server := httptest.NewServer(fake.handler())
	t.Cleanup(server.Close)

	discard := slog.New(slog.DiscardHandler)
	client, err := messaging.NewClient(messaging.ClientConfig{
		HomeserverURL: server.URL,
		ASToken:       testASToken,
		Logger:        discard,
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() {
		if err := client.Close(); err != nil {
			t.Errorf("client Close: %v", err)
		}
	})

	botUserID, err := ref.ParseUserID("@linebot:" + testServerName)
	if err != nil {
		t.Fatalf("ParseUserID: %v", err)
	}
	appservice, err := messaging.NewAppService(client, botUserID)
	if err != nil {
		t.Fatalf("NewAppService: %v", err)
	}

	serverName, err := ref.ParseServerName(testServerName)
	if err != nil {
		t.Fatalf("ParseServerName: %v", err)
	}
	codec, err := identity.NewCodec("line_{id}", serverName)
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	formatter, err := identity.NewDisplayNameFormatter(displaynameTemplate, 0)
	if err != nil {
		t.Fatalf("NewDisplayNameFormatter: %v", err)
	}

	fetcher := newFakeFetcher()
	avatars, err := bridge.NewMediaApplier(st, fetcher, discard)
	if err != nil {
		t.Fatalf("NewMediaApplier: %v", err)
	}

	registry, err := bridge.New(bridge.Config{
		Store:      st,
		Codec:      codec,
		Formatter:  formatter,
		AppService: appservice,
		Avatars:    avatars,
		Logger:     discard,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	return &harness{
		fake:       fake,
		fetcher:    fetcher,
		store:      st,
		client:     client,
		appservice: appservice,
		registry:   registry,
	}
}
