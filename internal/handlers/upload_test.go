package handlers

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/safeher/apiserver/types"
)

func uploadRequest(t *testing.T, token, filename, contentType string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/uploads", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestUploadAndServe(t *testing.T) {
	env := newTestEnv(t, nil)
	_, token := env.seed(t, "user@example.com", types.RoleUser)

	resp := httptest.NewRecorder()
	env.router.ServeHTTP(resp, uploadRequest(t, token, "bruise.png", "image/png", []byte("pngbytes")))
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	uploaded := decode[UploadResponse](t, resp)
	assert.Equal(t, "File uploaded successfully", uploaded.Message)
	assert.Equal(t, "bruise.png", uploaded.File.Name)
	assert.Equal(t, "image/png", uploaded.File.Type)
	assert.Equal(t, int64(8), uploaded.File.Size)
	assert.False(t, uploaded.File.UploadedAt.IsZero())
	require.True(t, strings.HasPrefix(uploaded.File.URL, "/uploads/attachments/"))

	resp = env.do(t, http.MethodGet, uploaded.File.URL, "", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "pngbytes", resp.Body.String())
	assert.Equal(t, "image/png", resp.Header().Get("Content-Type"))

	resp = env.do(t, http.MethodGet, "/uploads/attachments/missing.png", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestUploadRejections(t *testing.T) {
	env := newTestEnv(t, nil)
	_, token := env.seed(t, "user@example.com", types.RoleUser)

	resp := httptest.NewRecorder()
	env.router.ServeHTTP(resp, uploadRequest(t, token, "tool.exe", "application/octet-stream", []byte("MZ")))
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "file type not allowed. Allowed types: png, jpg, pdf", errorMessage(t, resp))

	resp = httptest.NewRecorder()
	env.router.ServeHTTP(resp, uploadRequest(t, token, "huge.pdf", "application/pdf", bytes.Repeat([]byte("a"), 2048)))
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "file too large. Maximum size: 1.0KB", errorMessage(t, resp))

	resp = env.do(t, http.MethodPost, "/api/uploads", token, map[string]string{"file": "nope"})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "invalid multipart form", errorMessage(t, resp))

	resp = httptest.NewRecorder()
	env.router.ServeHTTP(resp, uploadRequest(t, "", "a.png", "image/png", []byte("x")))
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	assert.Empty(t, env.blobs.Keys())
}

func TestUploadRejectsBodiesOverTheRequestLimit(t *testing.T) {
	env := newTestEnv(t, nil)
	_, token := env.seed(t, "user@example.com", types.RoleUser)
	payload := bytes.Repeat([]byte("a"), 2<<20)

	cases := []struct {
		filename string
		want     string
	}{
		{"huge.pdf", "file too large. Maximum size: 1.0KB"},
		{"huge.exe", "file type not allowed. Allowed types: png, jpg, pdf"},
	}
	for _, tc := range cases {
		t.Run(tc.filename, func(t *testing.T) {
			resp := httptest.NewRecorder()
			env.router.ServeHTTP(resp, uploadRequest(t, token, tc.filename, "application/octet-stream", payload))
			assert.Equal(t, http.StatusBadRequest, resp.Code)
			assert.Equal(t, tc.want, errorMessage(t, resp))
		})
	}
	assert.Empty(t, env.blobs.Keys())
}

func TestUploadFormWithoutFile(t *testing.T) {
	env := newTestEnv(t, nil)
	_, token := env.seed(t, "user@example.com", types.RoleUser)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	require.NoError(t, writer.WriteField("note", "hello"))
	require.NoError(t, writer.WriteField("file", "not a file"))
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/uploads", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	env.router.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "No file selected", errorMessage(t, resp))

	body.Reset()
	writer = multipart.NewWriter(&body)
	require.NoError(t, writer.WriteField("note", "hello"))
	require.NoError(t, writer.Close())
	req = httptest.NewRequest(http.MethodPost, "/api/uploads", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	resp = httptest.NewRecorder()
	env.router.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "No file provided", errorMessage(t, resp))
}
