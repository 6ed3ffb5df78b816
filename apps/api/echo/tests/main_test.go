package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/trezcool/evidencehub/apps/api/echo"
	"github.com/trezcool/evidencehub/core"
	"github.com/trezcool/evidencehub/core/review"
	"github.com/trezcool/evidencehub/tests"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

// app is an API server over a fresh in-memory Env.
type app struct {
	*testutil.Env
	srv *echoapi.Server
}

func newApp(t *testing.T) *app {
	env := testutil.NewEnv(t)
	srv := echoapi.NewServer(echoapi.ServerDeps{
		Conf:           env.Conf,
		Logger:         core.NopLogger{},
		Translator:     env.Translator,
		CatalogueSvc:   env.Catalogue,
		EvidenceSvc:    env.Evidence,
		RequirementSvc: env.Requirement,
		SubmissionSvc:  env.Submission,
		CoverageSvc:    env.Coverage,
		GatewaySvc:     env.Gateway,
		IQASvc:         env.IQA,
		ReviewSvc:      review.NewService(nil, env.Evidence, env.Catalogue, core.NopLogger{}),
	})
	return &app{Env: env, srv: srv}
}

func (a *app) serve(tt httpTest) *httptest.ResponseRecorder {
	method := tt.method
	if method == "" {
		method = http.MethodGet
	}
	req, rec := newAuthRequest(method, tt.path, tt.token, tt.body)
	a.srv.ServeHTTP(rec, req)
	return rec
}

// run serves every test and checks its code & data.
func (a *app) run(t *testing.T, tests []httpTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, a.serve(tt))
		})
	}
}

// do serves a request that must succeed and decodes its response into `dest`.
func (a *app) do(t *testing.T, method, path, token string, body interface{}, wantCode int, dest interface{}) {
	t.Helper()
	var data []byte
	if body != nil {
		data = marchallObj(t, body)
	}
	rec := a.serve(httpTest{method: method, path: path, token: token, body: data})
	if rec.Code != wantCode {
		t.Fatalf("%s %s: code = %v; wantCode %v; body %s", method, path, rec.Code, wantCode, rec.Body.String())
	}
	if dest != nil {
		if err := json.Unmarshal(rec.Body.Bytes(), dest); err != nil {
			t.Fatalf("%s %s: json.Unmarshal(): %v", method, path, err)
		}
	}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func getToken(t *testing.T, actor core.Actor, ttl ...time.Duration) string {
	d := time.Hour
	if len(ttl) > 0 {
		d = ttl[0]
	}
	token, err := echoapi.GenerateToken("secret", echoapi.NewClaims(testutil.NewConfig(), actor, d))
	if err != nil {
		t.Fatalf("getToken(): %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj(): %v", err)
	}
	return data
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
