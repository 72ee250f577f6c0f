package api_test

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/micro-nova/slidered/internal/api"
	"github.com/micro-nova/slidered/internal/auth"
	"github.com/micro-nova/slidered/internal/codec"
	"github.com/micro-nova/slidered/internal/events"
	"github.com/micro-nova/slidered/internal/models"
	"github.com/micro-nova/slidered/internal/storage"
	"github.com/micro-nova/slidered/internal/workspace"
)

const (
	docPath  = "/docs/synth.pianoroll.json"
	docFile  = "synth.pianoroll.json"
	docStart = `{"x": 1, "y": 2}`
)

// newTestServer spins up a full router over an in-memory filesystem holding
// one document.
func newTestServer(t *testing.T) (*httptest.Server, *storage.MemFS) {
	t.Helper()
	return newTestServerWithKey(t, "")
}

func newTestServerWithKey(t *testing.T, key string) (*httptest.Server, *storage.MemFS) {
	t.Helper()

	fs := storage.NewMemFS()
	fs.Put(docPath, []byte(docStart))
	bus := events.NewBus()
	reg := workspace.New(fs, bus, workspace.Options{
		Root:      "/docs",
		Pattern:   ".pianoroll.json",
		BackupDir: "/backups",
	})

	router := api.NewRouter(reg, auth.NewService(key), bus, 0)
	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		srv.Close()
		reg.CloseAll()
	})
	return srv, fs
}

// do is a convenience helper for making requests to the test server.
func do(t *testing.T, srv *httptest.Server, method, path, body string) *http.Response {
	t.Helper()
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, srv.URL+path, bodyReader)
	if err != nil {
		t.Fatalf("NewRequest %s %s: %v", method, path, err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("Do %s %s: %v", method, path, err)
	}
	return resp
}

// decodeJSON reads and decodes a JSON response body into v.
func decodeJSON(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
}

// requireStatus fails the test if the response status doesn't match.
func requireStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Fatalf("status = %d, want %d; body: %s", resp.StatusCode, expected, body)
	}
}

// openDoc opens the seeded document and returns its session.
func openDoc(t *testing.T, srv *httptest.Server) models.Session {
	t.Helper()
	resp := do(t, srv, "POST", "/api/documents", `{"path":"`+docFile+`"}`)
	requireStatus(t, resp, http.StatusCreated)
	var s models.Session
	decodeJSON(t, resp, &s)
	return s
}

func controlValue(t *testing.T, s models.Session, id string) float64 {
	t.Helper()
	for _, c := range s.Controls {
		if c.ID == id {
			return c.Value
		}
	}
	t.Fatalf("no control %q in %+v", id, s.Controls)
	return 0
}

// --- Tests ---

func TestGetInfo(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := do(t, srv, "GET", "/api/info", "")
	requireStatus(t, resp, http.StatusOK)

	var info models.Info
	decodeJSON(t, resp, &info)
	if info.Version == "" {
		t.Error("GET /api/info: version field is empty")
	}
	if info.Pattern != ".pianoroll.json" {
		t.Errorf("pattern = %q, want .pianoroll.json", info.Pattern)
	}
	if info.Dropped != 0 {
		t.Errorf("dropped_events = %d, want 0", info.Dropped)
	}
}

func TestOpenDocument(t *testing.T) {
	srv, _ := newTestServer(t)

	s := openDoc(t, srv)
	if s.ID == "" {
		t.Fatal("session id is empty")
	}
	if s.URI != docPath {
		t.Errorf("uri = %q, want %q", s.URI, docPath)
	}
	if s.Dirty {
		t.Error("freshly opened document is dirty")
	}
	if len(s.Controls) != 2 || s.Controls[0].ID != "x" || s.Controls[1].ID != "y" {
		t.Fatalf("controls = %+v, want x then y", s.Controls)
	}
	if s.Controls[0].Min != 1 || s.Controls[0].Max != 100 {
		t.Errorf("bounds = [%d,%d], want [1,100]", s.Controls[0].Min, s.Controls[0].Max)
	}

	// Opening the same file again returns the same session.
	resp := do(t, srv, "POST", "/api/documents", `{"path":"`+docPath+`"}`)
	requireStatus(t, resp, http.StatusOK)
	var again models.Session
	decodeJSON(t, resp, &again)
	if again.ID != s.ID {
		t.Errorf("second open id = %q, want %q", again.ID, s.ID)
	}
}

func TestOpenDocument_Malformed(t *testing.T) {
	srv, fs := newTestServer(t)
	fs.Put("/docs/bad.pianoroll.json", []byte(`[1, 2, 3]`))

	resp := do(t, srv, "POST", "/api/documents", `{"path":"bad.pianoroll.json"}`)
	requireStatus(t, resp, http.StatusUnprocessableEntity)
	var appErr models.AppError
	decodeJSON(t, resp, &appErr)
	if appErr.Code != "MALFORMED_DOCUMENT" {
		t.Errorf("error code = %q, want MALFORMED_DOCUMENT", appErr.Code)
	}

	resp = do(t, srv, "GET", "/api/documents", "")
	requireStatus(t, resp, http.StatusOK)
	var list []models.Session
	decodeJSON(t, resp, &list)
	if len(list) != 0 {
		t.Errorf("sessions after malformed open = %d, want 0", len(list))
	}
}

func TestOpenDocument_WrongSuffix(t *testing.T) {
	srv, fs := newTestServer(t)
	fs.Put("/docs/notes.json", []byte(`{"a": 1}`))

	resp := do(t, srv, "POST", "/api/documents", `{"path":"notes.json"}`)
	requireStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()
}

func TestOpenDocument_InvalidJSON(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := do(t, srv, "POST", "/api/documents", `{not valid json`)
	requireStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()
}

func TestGetDocument_NotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := do(t, srv, "GET", "/api/documents/nope", "")
	requireStatus(t, resp, http.StatusNotFound)
	resp.Body.Close()
}

func TestEditAndSave(t *testing.T) {
	srv, fs := newTestServer(t)
	s := openDoc(t, srv)

	resp := do(t, srv, "POST", "/api/documents/"+s.ID+"/messages", `{"command":"valueChanged","key":"x","value":"99"}`)
	requireStatus(t, resp, http.StatusOK)
	var edited models.Session
	decodeJSON(t, resp, &edited)
	if got := controlValue(t, edited, "x"); got != 99 {
		t.Errorf("x = %v, want 99", got)
	}
	if !edited.Dirty {
		t.Error("document not dirty after edit")
	}
	if data, _ := fs.Get(docPath); string(data) != docStart {
		t.Errorf("edit touched storage: %s", data)
	}

	resp = do(t, srv, "POST", "/api/documents/"+s.ID+"/save", "")
	requireStatus(t, resp, http.StatusOK)
	var saved models.Session
	decodeJSON(t, resp, &saved)
	if saved.Dirty {
		t.Error("document dirty after save")
	}

	data, _ := fs.Get(docPath)
	params, err := codec.Decode(data)
	if err != nil {
		t.Fatalf("decode saved file: %v", err)
	}
	if v, _ := params.Get("x"); v != 99 {
		t.Errorf("saved x = %v, want 99", v)
	}
	if v, _ := params.Get("y"); v != 2 {
		t.Errorf("saved y = %v, want 2", v)
	}
}

func TestPostMessage_Clamped(t *testing.T) {
	srv, _ := newTestServer(t)
	s := openDoc(t, srv)

	resp := do(t, srv, "POST", "/api/documents/"+s.ID+"/messages", `{"command":"valueChanged","key":"y","value":"250"}`)
	requireStatus(t, resp, http.StatusOK)
	var got models.Session
	decodeJSON(t, resp, &got)
	if v := controlValue(t, got, "y"); v != 100 {
		t.Errorf("y = %v, want clamped 100", v)
	}
}

func TestPostMessage_UnknownCommand(t *testing.T) {
	srv, _ := newTestServer(t)
	s := openDoc(t, srv)

	resp := do(t, srv, "POST", "/api/documents/"+s.ID+"/messages", `{"command":"explode"}`)
	requireStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()
}

func TestSaveAs(t *testing.T) {
	srv, fs := newTestServer(t)
	s := openDoc(t, srv)

	do(t, srv, "POST", "/api/documents/"+s.ID+"/messages", `{"command":"valueChanged","key":"x","value":"42"}`).Body.Close()

	resp := do(t, srv, "POST", "/api/documents/"+s.ID+"/save-as", `{"path":"copy.pianoroll.json"}`)
	requireStatus(t, resp, http.StatusOK)
	var got models.Session
	decodeJSON(t, resp, &got)
	if got.URI != docPath {
		t.Errorf("uri after save-as = %q, want %q", got.URI, docPath)
	}

	if data, _ := fs.Get(docPath); string(data) != docStart {
		t.Errorf("save-as modified the original: %s", data)
	}
	data, ok := fs.Get("/docs/copy.pianoroll.json")
	if !ok {
		t.Fatal("save-as target not written")
	}
	params, err := codec.Decode(data)
	if err != nil {
		t.Fatalf("decode target: %v", err)
	}
	if v, _ := params.Get("x"); v != 42 {
		t.Errorf("target x = %v, want 42", v)
	}
}

func TestSaveAs_OutsideRoot(t *testing.T) {
	srv, fs := newTestServer(t)
	s := openDoc(t, srv)

	for _, target := range []string{
		"../outside.pianoroll.json",
		"/etc/cron.d/x.pianoroll.json",
		"copy.json",
		"../root/.bashrc",
	} {
		resp := do(t, srv, "POST", "/api/documents/"+s.ID+"/save-as", `{"path":"`+target+`"}`)
		requireStatus(t, resp, http.StatusBadRequest)
		resp.Body.Close()
	}
	if _, ok := fs.Get("/outside.pianoroll.json"); ok {
		t.Error("save-as wrote outside the document root")
	}
	if _, ok := fs.Get("/docs/copy.json"); ok {
		t.Error("save-as wrote a file without the document suffix")
	}
}

func TestSaveAs_MissingPath(t *testing.T) {
	srv, _ := newTestServer(t)
	s := openDoc(t, srv)

	resp := do(t, srv, "POST", "/api/documents/"+s.ID+"/save-as", `{}`)
	requireStatus(t, resp, http.StatusBadRequest)
	resp.Body.Close()
}

func TestSave_IOError(t *testing.T) {
	srv, fs := newTestServer(t)
	s := openDoc(t, srv)
	fs.FailWrites(io.ErrShortWrite)

	resp := do(t, srv, "POST", "/api/documents/"+s.ID+"/save", "")
	requireStatus(t, resp, http.StatusInternalServerError)
	var appErr models.AppError
	decodeJSON(t, resp, &appErr)
	if appErr.Code != "IO_ERROR" {
		t.Errorf("error code = %q, want IO_ERROR", appErr.Code)
	}
}

// TestSave_ClientGoesAway cancels a save by dropping the request while the
// write is in flight. The file must keep its old content.
func TestSave_ClientGoesAway(t *testing.T) {
	srv, fs := newTestServer(t)
	s := openDoc(t, srv)
	do(t, srv, "POST", "/api/documents/"+s.ID+"/messages", `{"command":"valueChanged","key":"x","value":"7"}`).Body.Close()

	started, release := fs.HoldWrites()
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, srv.URL+"/api/documents/"+s.ID+"/save", nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	errc := make(chan error, 1)
	go func() {
		resp, err := srv.Client().Do(req)
		if err == nil {
			resp.Body.Close()
		}
		errc <- err
	}()

	select {
	case <-started:
	case <-time.After(3 * time.Second):
		t.Fatal("save never reached storage")
	}
	cancel()
	<-errc

	deadline := time.Now().Add(3 * time.Second)
	for {
		resp := do(t, srv, "GET", "/api/documents/"+s.ID, "")
		var got models.Session
		decodeJSON(t, resp, &got)
		if got.State != models.StateSaving {
			if !got.Dirty {
				t.Error("cancelled save cleared dirty")
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("document stuck in saving state")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if data, _ := fs.Get(docPath); string(data) != docStart {
		t.Errorf("cancelled save modified the file: %s", data)
	}
}

func TestRevert(t *testing.T) {
	srv, fs := newTestServer(t)
	s := openDoc(t, srv)

	do(t, srv, "POST", "/api/documents/"+s.ID+"/messages", `{"command":"valueChanged","key":"x","value":"80"}`).Body.Close()
	fs.Put(docPath, []byte(`{"x": 5, "y": 6}`))

	resp := do(t, srv, "POST", "/api/documents/"+s.ID+"/revert", "")
	requireStatus(t, resp, http.StatusOK)
	var got models.Session
	decodeJSON(t, resp, &got)
	if v := controlValue(t, got, "x"); v != 5 {
		t.Errorf("x after revert = %v, want 5", v)
	}
	if got.Dirty {
		t.Error("document dirty after revert")
	}
}

func TestRevert_Malformed(t *testing.T) {
	srv, fs := newTestServer(t)
	s := openDoc(t, srv)

	fs.Put(docPath, []byte(`{"x": "loud"}`))
	resp := do(t, srv, "POST", "/api/documents/"+s.ID+"/revert", "")
	requireStatus(t, resp, http.StatusUnprocessableEntity)
	resp.Body.Close()

	resp = do(t, srv, "GET", "/api/documents/"+s.ID, "")
	var got models.Session
	decodeJSON(t, resp, &got)
	if v := controlValue(t, got, "x"); v != 1 {
		t.Errorf("x after failed revert = %v, want 1", v)
	}
}

func TestBackup(t *testing.T) {
	srv, fs := newTestServer(t)
	s := openDoc(t, srv)

	resp := do(t, srv, "POST", "/api/documents/"+s.ID+"/backup", "")
	requireStatus(t, resp, http.StatusCreated)
	var b models.BackupInfo
	decodeJSON(t, resp, &b)
	if b.ID == "" || !strings.HasPrefix(b.URI, "/backups/") {
		t.Fatalf("backup = %+v, want id and a path under /backups", b)
	}
	if _, ok := fs.Get(b.URI); !ok {
		t.Fatal("backup file not written")
	}

	resp = do(t, srv, "GET", "/api/documents/"+s.ID+"/backups", "")
	requireStatus(t, resp, http.StatusOK)
	var list []models.BackupInfo
	decodeJSON(t, resp, &list)
	if len(list) != 1 || list[0].ID != b.ID {
		t.Errorf("backups = %+v, want [%s]", list, b.ID)
	}

	resp = do(t, srv, "DELETE", "/api/documents/"+s.ID+"/backups/"+b.ID, "")
	requireStatus(t, resp, http.StatusNoContent)
	resp.Body.Close()
	if _, ok := fs.Get(b.URI); ok {
		t.Error("backup file still present after delete")
	}

	resp = do(t, srv, "DELETE", "/api/documents/"+s.ID+"/backups/"+b.ID, "")
	requireStatus(t, resp, http.StatusNotFound)
	resp.Body.Close()
}

func TestBackup_ExplicitPath(t *testing.T) {
	srv, fs := newTestServer(t)
	s := openDoc(t, srv)

	resp := do(t, srv, "POST", "/api/documents/"+s.ID+"/backup", `{"path":"before-edit.json"}`)
	requireStatus(t, resp, http.StatusCreated)
	var b models.BackupInfo
	decodeJSON(t, resp, &b)
	if b.URI != "/backups/before-edit.json" {
		t.Errorf("backup uri = %q, want /backups/before-edit.json", b.URI)
	}
	if _, ok := fs.Get(b.URI); !ok {
		t.Fatal("backup file not written")
	}

	for _, target := range []string{"/etc/x.backup.json", "../docs/synth.pianoroll.json"} {
		resp := do(t, srv, "POST", "/api/documents/"+s.ID+"/backup", `{"path":"`+target+`"}`)
		requireStatus(t, resp, http.StatusBadRequest)
		resp.Body.Close()
	}
	if _, ok := fs.Get("/etc/x.backup.json"); ok {
		t.Error("backup written outside the backup directory")
	}
	if data, _ := fs.Get(docPath); string(data) != docStart {
		t.Errorf("backup overwrote the document: %s", data)
	}
}

func TestOpenFromBackup(t *testing.T) {
	srv, fs := newTestServer(t)
	fs.Put("/backups/synth.backup.json", []byte(`{"x": 64, "y": 2}`))

	resp := do(t, srv, "POST", "/api/documents", `{"path":"`+docFile+`","backup":"/backups/synth.backup.json"}`)
	requireStatus(t, resp, http.StatusCreated)
	var s models.Session
	decodeJSON(t, resp, &s)
	if v := controlValue(t, s, "x"); v != 64 {
		t.Errorf("restored x = %v, want 64", v)
	}
	if !s.Dirty {
		t.Error("restored document should be dirty")
	}
	if s.URI != docPath {
		t.Errorf("uri = %q, want %q", s.URI, docPath)
	}
}

func TestDiff(t *testing.T) {
	srv, _ := newTestServer(t)
	s := openDoc(t, srv)

	do(t, srv, "POST", "/api/documents/"+s.ID+"/messages", `{"command":"valueChanged","key":"y","value":"77"}`).Body.Close()

	resp := do(t, srv, "GET", "/api/documents/"+s.ID+"/diff", "")
	requireStatus(t, resp, http.StatusOK)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "77") {
		t.Errorf("diff = %q, want it to mention 77", body)
	}
}

func TestCloseDocument(t *testing.T) {
	srv, _ := newTestServer(t)
	s := openDoc(t, srv)

	resp := do(t, srv, "DELETE", "/api/documents/"+s.ID, "")
	requireStatus(t, resp, http.StatusNoContent)
	resp.Body.Close()

	resp = do(t, srv, "GET", "/api/documents/"+s.ID, "")
	requireStatus(t, resp, http.StatusNotFound)
	resp.Body.Close()

	resp = do(t, srv, "DELETE", "/api/documents/"+s.ID, "")
	requireStatus(t, resp, http.StatusNotFound)
	resp.Body.Close()
}

func TestEditPage(t *testing.T) {
	srv, _ := newTestServer(t)
	s := openDoc(t, srv)

	resp := do(t, srv, "GET", "/edit/"+s.ID, "")
	requireStatus(t, resp, http.StatusOK)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q, want text/html", ct)
	}
	page := string(body)
	for _, want := range []string{`type="range"`, `id="x"`, `id="y"`, `min="1"`, `max="100"`, "/api/documents/" + s.ID + "/ws"} {
		if !strings.Contains(page, want) {
			t.Errorf("page missing %q", want)
		}
	}
}

func TestSSESubscribe(t *testing.T) {
	srv, _ := newTestServer(t)
	s := openDoc(t, srv)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/subscribe?document="+s.ID, nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}

	// Use a client that doesn't buffer
	client := &http.Client{
		Transport: &http.Transport{
			DisableCompression: true,
		},
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}

	scanner := bufio.NewScanner(resp.Body)
	nextData := func() string {
		for scanner.Scan() {
			line := scanner.Text()
			if strings.HasPrefix(line, "data: ") {
				return strings.TrimPrefix(line, "data: ")
			}
		}
		t.Fatal("SSE stream ended early")
		return ""
	}

	// The first event lists the open sessions; once it arrives the
	// subscription is live.
	var sessions []models.Session
	if err := json.Unmarshal([]byte(nextData()), &sessions); err != nil {
		t.Fatalf("sessions event is not valid JSON: %v", err)
	}
	if len(sessions) != 1 || sessions[0].ID != s.ID {
		t.Fatalf("sessions = %+v, want [%s]", sessions, s.ID)
	}

	do(t, srv, "POST", "/api/documents/"+s.ID+"/messages", `{"command":"valueChanged","key":"x","value":"33"}`).Body.Close()

	var ev models.Event
	if err := json.Unmarshal([]byte(nextData()), &ev); err != nil {
		t.Fatalf("event is not valid JSON: %v", err)
	}
	if ev.Kind != models.EventEdit || ev.Key != "x" || ev.Value == nil || *ev.Value != 33 || !ev.Dirty {
		t.Errorf("event = %+v, want dirty edit of x to 33", ev)
	}
}

func wsURL(srv *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + path
}

func TestWebSocketSurface(t *testing.T) {
	srv, _ := newTestServer(t)
	s := openDoc(t, srv)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/api/documents/"+s.ID+"/ws"), nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var first models.Outbound
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read render: %v", err)
	}
	if first.Command != "render" || len(first.Controls) != 2 {
		t.Fatalf("first message = %+v, want render with 2 controls", first)
	}

	if err := conn.WriteJSON(map[string]string{"command": "valueChanged", "key": "y", "value": "55"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	var ev models.Outbound
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if ev.Command != "event" || ev.Event == nil || ev.Event.Kind != models.EventEdit || ev.Event.Key != "y" {
		t.Fatalf("message = %+v, want edit event for y", ev)
	}

	resp := do(t, srv, "GET", "/api/documents/"+s.ID, "")
	var got models.Session
	decodeJSON(t, resp, &got)
	if v := controlValue(t, got, "y"); v != 55 {
		t.Errorf("y = %v, want 55", v)
	}
	if got.State != models.StateReady {
		t.Errorf("state = %v, want ready", got.State)
	}
}

func TestWebSocketSurface_ClosedWithDocument(t *testing.T) {
	srv, _ := newTestServer(t)
	s := openDoc(t, srv)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/api/documents/"+s.ID+"/ws"), nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var first models.Outbound
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read render: %v", err)
	}

	do(t, srv, "DELETE", "/api/documents/"+s.ID, "").Body.Close()

	for {
		var msg models.Outbound
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsCloseError(err, websocket.CloseGoingAway) {
				return
			}
			t.Fatalf("read after close = %v, want close going away", err)
		}
	}
}

func TestAuth_RequiresKey(t *testing.T) {
	srv, _ := newTestServerWithKey(t, "s3cret")

	resp := do(t, srv, "GET", "/api/documents", "")
	requireStatus(t, resp, http.StatusUnauthorized)
	resp.Body.Close()

	resp = do(t, srv, "GET", "/api/documents?api-key=s3cret", "")
	requireStatus(t, resp, http.StatusOK)
	resp.Body.Close()
}

func TestNotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := do(t, srv, "GET", "/api/nonexistent", "")
	requireStatus(t, resp, http.StatusNotFound)
	resp.Body.Close()
}

func TestCORSOptions(t *testing.T) {
	srv, _ := newTestServer(t)

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/documents", nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}

	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("OPTIONS status = %d, want 204", resp.StatusCode)
	}
}

func TestCORS_ForeignOrigin(t *testing.T) {
	srv, _ := newTestServer(t)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/info", nil)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("Origin", "http://evil.example")
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Access-Control-Allow-Origin = %q for a foreign origin, want none", got)
	}

	req, _ = http.NewRequest(http.MethodGet, srv.URL+"/api/info", nil)
	req.Header.Set("Origin", srv.URL)
	resp, err = srv.Client().Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != srv.URL {
		t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, srv.URL)
	}
}

// TestMutation_RequiresJSON sends the kind of body a cross-site form may post
// without a preflight.
func TestMutation_RequiresJSON(t *testing.T) {
	srv, fs := newTestServer(t)
	s := openDoc(t, srv)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/documents/"+s.ID+"/save-as",
		strings.NewReader(`{"path":"stolen.pianoroll.json"}`))
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set("Origin", "http://evil.example")
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	requireStatus(t, resp, http.StatusUnsupportedMediaType)
	resp.Body.Close()
	if _, ok := fs.Get("/docs/stolen.pianoroll.json"); ok {
		t.Error("text/plain save-as was accepted")
	}
}

func TestWebSocketSurface_ForeignOrigin(t *testing.T) {
	srv, _ := newTestServer(t)
	s := openDoc(t, srv)

	header := http.Header{"Origin": []string{"http://evil.example"}}
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, "/api/documents/"+s.ID+"/ws"), header)
	if err == nil {
		conn.Close()
		t.Fatal("handshake from a foreign origin succeeded")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("handshake response = %v, want 403", resp)
	}
}
