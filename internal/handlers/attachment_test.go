package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bloghub/apiserver/internal/services"
	"github.com/bloghub/apiserver/internal/store"
	"github.com/bloghub/apiserver/types"
	"github.com/go-chi/chi/v5"
)

type fakeAttachmentRepo struct {
	nextID      int
	attachments map[int]types.Attachment
}

func newFakeAttachmentRepo() *fakeAttachmentRepo {
	return &fakeAttachmentRepo{nextID: 1, attachments: map[int]types.Attachment{}}
}

func (f *fakeAttachmentRepo) ListByPost(ctx context.Context, postID int) ([]types.Attachment, error) {
	result := make([]types.Attachment, 0)
	for _, attachment := range f.attachments {
		if attachment.PostID == postID {
			result = append(result, attachment)
		}
	}
	return result, nil
}

func (f *fakeAttachmentRepo) Get(ctx context.Context, id int) (types.Attachment, error) {
	attachment, ok := f.attachments[id]
	if !ok {
		return types.Attachment{}, store.ErrNotFound
	}
	return attachment, nil
}

func (f *fakeAttachmentRepo) Create(ctx context.Context, attachment types.Attachment) (types.Attachment, error) {
	attachment.ID = f.nextID
	f.nextID++
	attachment.CreatedAt = time.Now()
	f.attachments[attachment.ID] = attachment
	return attachment, nil
}

func (f *fakeAttachmentRepo) Delete(ctx context.Context, id int) error {
	if _, ok := f.attachments[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.attachments, id)
	return nil
}

type memObjectStorage struct {
	objects map[string][]byte
}

func newMemObjectStorage() *memObjectStorage {
	return &memObjectStorage{objects: map[string][]byte{}}
}

func (m *memObjectStorage) EnsureBucket(ctx context.Context) error { return nil }

func (m *memObjectStorage) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.objects[key] = data
	return nil
}

func (m *memObjectStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	data, ok := m.objects[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memObjectStorage) Delete(ctx context.Context, key string) error {
	delete(m.objects, key)
	return nil
}

func (m *memObjectStorage) Bucket() string { return "test" }

func newAttachmentRouter(attachmentRepo *fakeAttachmentRepo, postRepo *fakePostRepo, objects *memObjectStorage) *chi.Mux {
	var attachmentService *services.AttachmentService
	if objects != nil {
		attachmentService = services.NewAttachmentService(attachmentRepo, objects)
	} else {
		attachmentService = services.NewAttachmentService(attachmentRepo, nil)
	}
	postService := services.NewPostService(postRepo, nil)
	authMiddleware := RequireAuth(testSecret)

	router := chi.NewRouter()
	router.Route("/posts/{postID}/attachments", func(r chi.Router) {
		PostAttachmentRouter(r, attachmentService, postService, authMiddleware)
	})
	router.Route("/attachments", func(r chi.Router) {
		AttachmentRouter(r, attachmentService, postService, authMiddleware)
	})
	return router
}

func uploadFile(t *testing.T, router http.Handler, path, token, filename, content string) *httptest.ResponseRecorder {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile(formFieldFile, filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestUploadAttachment(t *testing.T) {
	attachmentRepo := newFakeAttachmentRepo()
	postRepo := newFakePostRepo()
	objects := newMemObjectStorage()
	post, _ := postRepo.Create(context.Background(), types.Post{AuthorID: 1, Title: "t", Content: "c"})
	router := newAttachmentRouter(attachmentRepo, postRepo, objects)

	w := uploadFile(t, router, fmt.Sprintf("/posts/%d/attachments", post.ID), tokenFor(t, 1), "photo.png", "fake image bytes")
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp AttachmentResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Attachment.Filename != "photo.png" {
		t.Fatalf("unexpected filename %q", resp.Attachment.Filename)
	}
	if resp.Attachment.Size != int64(len("fake image bytes")) {
		t.Fatalf("unexpected size %d", resp.Attachment.Size)
	}
	if _, ok := objects.objects[resp.Attachment.ObjectKey]; !ok {
		t.Fatalf("expected object stored under %q", resp.Attachment.ObjectKey)
	}
}

func TestUploadAttachmentOwnership(t *testing.T) {
	postRepo := newFakePostRepo()
	post, _ := postRepo.Create(context.Background(), types.Post{AuthorID: 1, Title: "t", Content: "c"})
	router := newAttachmentRouter(newFakeAttachmentRepo(), postRepo, newMemObjectStorage())

	w := uploadFile(t, router, fmt.Sprintf("/posts/%d/attachments", post.ID), tokenFor(t, 2), "photo.png", "bytes")
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-owner, got %d", w.Code)
	}
}

func TestUploadAttachmentPostMissing(t *testing.T) {
	router := newAttachmentRouter(newFakeAttachmentRepo(), newFakePostRepo(), newMemObjectStorage())

	w := uploadFile(t, router, "/posts/99/attachments", tokenFor(t, 1), "photo.png", "bytes")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestUploadAttachmentStorageDisabled(t *testing.T) {
	postRepo := newFakePostRepo()
	post, _ := postRepo.Create(context.Background(), types.Post{AuthorID: 1, Title: "t", Content: "c"})
	router := newAttachmentRouter(newFakeAttachmentRepo(), postRepo, nil)

	w := uploadFile(t, router, fmt.Sprintf("/posts/%d/attachments", post.ID), tokenFor(t, 1), "photo.png", "bytes")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when storage disabled, got %d", w.Code)
	}
}

func TestDownloadAttachment(t *testing.T) {
	attachmentRepo := newFakeAttachmentRepo()
	postRepo := newFakePostRepo()
	objects := newMemObjectStorage()
	post, _ := postRepo.Create(context.Background(), types.Post{AuthorID: 1, Title: "t", Content: "c"})
	router := newAttachmentRouter(attachmentRepo, postRepo, objects)

	w := uploadFile(t, router, fmt.Sprintf("/posts/%d/attachments", post.ID), tokenFor(t, 1), "notes.txt", "hello attachment")
	if w.Code != http.StatusCreated {
		t.Fatalf("upload failed: %d", w.Code)
	}
	var uploaded AttachmentResponse
	if err := json.NewDecoder(w.Body).Decode(&uploaded); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	w = authedJSON(t, router, http.MethodGet, fmt.Sprintf("/attachments/%d", uploaded.Attachment.ID), "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w.Body.String() != "hello attachment" {
		t.Fatalf("unexpected body %q", w.Body.String())
	}
}

func TestDeleteAttachment(t *testing.T) {
	attachmentRepo := newFakeAttachmentRepo()
	postRepo := newFakePostRepo()
	objects := newMemObjectStorage()
	post, _ := postRepo.Create(context.Background(), types.Post{AuthorID: 1, Title: "t", Content: "c"})
	router := newAttachmentRouter(attachmentRepo, postRepo, objects)

	w := uploadFile(t, router, fmt.Sprintf("/posts/%d/attachments", post.ID), tokenFor(t, 1), "notes.txt", "bytes")
	if w.Code != http.StatusCreated {
		t.Fatalf("upload failed: %d", w.Code)
	}
	var uploaded AttachmentResponse
	if err := json.NewDecoder(w.Body).Decode(&uploaded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	path := fmt.Sprintf("/attachments/%d", uploaded.Attachment.ID)

	w = authedJSON(t, router, http.MethodDelete, path, tokenFor(t, 2), nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-owner, got %d", w.Code)
	}

	w = authedJSON(t, router, http.MethodDelete, path, tokenFor(t, 1), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for owner, got %d", w.Code)
	}

	if len(objects.objects) != 0 {
		t.Fatalf("expected object removed from storage")
	}
	if _, err := attachmentRepo.Get(context.Background(), uploaded.Attachment.ID); err == nil {
		t.Fatalf("expected metadata row removed")
	}
}
