//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bloghub/apiserver/config"
	"github.com/bloghub/apiserver/internal/server"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
)

const (
	serverPort = 18080
)

func TestMain(m *testing.M) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	root, err := repoRoot()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to locate repo root: %v\n", err)
		os.Exit(1)
	}

	if err := dockerCompose(ctx, root, "up", "-d"); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start docker compose: %v\n", err)
		os.Exit(1)
	}

	if err := waitForPostgres(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "postgres not ready: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	if err := runMigrations(root); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run migrations: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	srv, err := startServer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start server: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	baseURL := fmt.Sprintf("http://localhost:%d", serverPort)
	if err := waitForHealth(ctx, baseURL+"/healthz"); err != nil {
		fmt.Fprintf(os.Stderr, "server not healthy: %v\n", err)
		_ = srv.Shutdown()
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	code := m.Run()

	_ = srv.Shutdown()
	_ = dockerCompose(context.Background(), root, "down")
	os.Exit(code)
}

func TestBlogLifecycle(t *testing.T) {
	baseURL := fmt.Sprintf("http://localhost:%d", serverPort)
	suffix := time.Now().UnixNano()
	alice := fmt.Sprintf("alice_%d", suffix)
	bob := fmt.Sprintf("bob_%d", suffix)
	password := "testpass123!"

	if err := registerUser(t, baseURL, alice, password); err != nil {
		t.Fatalf("register alice: %v", err)
	}
	if err := registerUser(t, baseURL, bob, password); err != nil {
		t.Fatalf("register bob: %v", err)
	}

	if status := loginStatus(t, baseURL, alice, "wrong-password"); status != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong password, got %d", status)
	}

	aliceToken, err := login(t, baseURL, alice, password)
	if err != nil {
		t.Fatalf("login alice: %v", err)
	}
	bobToken, err := login(t, baseURL, bob, password)
	if err != nil {
		t.Fatalf("login bob: %v", err)
	}

	post, err := createPost(t, baseURL, aliceToken, "First post", "Hello from the e2e suite")
	if err != nil {
		t.Fatalf("create post: %v", err)
	}
	if post.ID == 0 {
		t.Fatalf("expected post ID to be set")
	}

	fetched, err := getPost(t, baseURL, post.ID)
	if err != nil {
		t.Fatalf("get post: %v", err)
	}
	if fetched.Author.Username != alice {
		t.Fatalf("expected author %q, got %q", alice, fetched.Author.Username)
	}

	if status := updatePostStatus(t, baseURL, bobToken, post.ID, "Hijacked", "nope"); status != http.StatusForbidden {
		t.Fatalf("expected 403 updating another user's post, got %d", status)
	}
	if status := updatePostStatus(t, baseURL, aliceToken, post.ID, "First post, edited", "Updated body"); status != http.StatusOK {
		t.Fatalf("expected 200 updating own post, got %d", status)
	}

	comment, err := createComment(t, baseURL, bobToken, post.ID, "Great read")
	if err != nil {
		t.Fatalf("create comment: %v", err)
	}
	if comment.Author.Username != bob {
		t.Fatalf("expected comment author %q, got %q", bob, comment.Author.Username)
	}

	if status := createCommentStatus(t, baseURL, bobToken, post.ID+1000, "orphan"); status != http.StatusNotFound {
		t.Fatalf("expected 404 commenting on missing post, got %d", status)
	}

	if status := deleteStatus(t, baseURL, bobToken, fmt.Sprintf("/posts/%d", post.ID)); status != http.StatusForbidden {
		t.Fatalf("expected 403 deleting another user's post, got %d", status)
	}
	if status := deleteStatus(t, baseURL, aliceToken, fmt.Sprintf("/posts/%d", post.ID)); status != http.StatusOK {
		t.Fatalf("expected 200 deleting own post, got %d", status)
	}

	if status := getStatus(t, baseURL, fmt.Sprintf("/posts/%d", post.ID)); status != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", status)
	}
}

type postResponse struct {
	ID     int    `json:"id"`
	Title  string `json:"title"`
	Author struct {
		Username string `json:"username"`
		Email    string `json:"email"`
	} `json:"author"`
}

type commentResponse struct {
	ID     int    `json:"id"`
	PostID int    `json:"post_id"`
	Author struct {
		Username string `json:"username"`
	} `json:"author"`
}

func registerUser(t *testing.T, baseURL, username, password string) error {
	t.Helper()

	status, body, err := postJSON(baseURL+"/users", "", map[string]string{
		"username": username,
		"email":    fmt.Sprintf("%s@example.com", username),
		"password": password,
	})
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("register status %d: %s", status, body)
	}
	return nil
}

func login(t *testing.T, baseURL, username, password string) (string, error) {
	t.Helper()

	status, body, err := postJSON(baseURL+"/login", "", map[string]string{
		"username": username,
		"password": password,
	})
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("login status %d: %s", status, body)
	}

	var parsed struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal([]byte(body), &parsed); err != nil {
		return "", err
	}
	if parsed.Token == "" {
		return "", fmt.Errorf("missing token in login response")
	}
	return parsed.Token, nil
}

func loginStatus(t *testing.T, baseURL, username, password string) int {
	t.Helper()

	status, _, err := postJSON(baseURL+"/login", "", map[string]string{
		"username": username,
		"password": password,
	})
	if err != nil {
		t.Fatalf("login request: %v", err)
	}
	return status
}

func createPost(t *testing.T, baseURL, token, title, content string) (postResponse, error) {
	t.Helper()

	status, body, err := postJSON(baseURL+"/posts", token, map[string]string{
		"title":   title,
		"content": content,
	})
	if err != nil {
		return postResponse{}, err
	}
	if status != http.StatusCreated {
		return postResponse{}, fmt.Errorf("create post status %d: %s", status, body)
	}

	var parsed struct {
		Post postResponse `json:"post"`
	}
	if err := json.Unmarshal([]byte(body), &parsed); err != nil {
		return postResponse{}, err
	}
	return parsed.Post, nil
}

func getPost(t *testing.T, baseURL string, id int) (postResponse, error) {
	t.Helper()

	resp, err := http.Get(fmt.Sprintf("%s/posts/%d", baseURL, id))
	if err != nil {
		return postResponse{}, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return postResponse{}, fmt.Errorf("get post status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed struct {
		Post postResponse `json:"post"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return postResponse{}, err
	}
	return parsed.Post, nil
}

func updatePostStatus(t *testing.T, baseURL, token string, id int, title, content string) int {
	t.Helper()

	status, _, err := doJSON(http.MethodPut, fmt.Sprintf("%s/posts/%d", baseURL, id), token, map[string]string{
		"title":   title,
		"content": content,
	})
	if err != nil {
		t.Fatalf("update post request: %v", err)
	}
	return status
}

func createComment(t *testing.T, baseURL, token string, postID int, content string) (commentResponse, error) {
	t.Helper()

	status, body, err := postJSON(fmt.Sprintf("%s/posts/%d/comments", baseURL, postID), token, map[string]string{
		"content": content,
	})
	if err != nil {
		return commentResponse{}, err
	}
	if status != http.StatusOK {
		return commentResponse{}, fmt.Errorf("create comment status %d: %s", status, body)
	}

	var parsed struct {
		Comment commentResponse `json:"comment"`
	}
	if err := json.Unmarshal([]byte(body), &parsed); err != nil {
		return commentResponse{}, err
	}
	return parsed.Comment, nil
}

func createCommentStatus(t *testing.T, baseURL, token string, postID int, content string) int {
	t.Helper()

	status, _, err := postJSON(fmt.Sprintf("%s/posts/%d/comments", baseURL, postID), token, map[string]string{
		"content": content,
	})
	if err != nil {
		t.Fatalf("create comment request: %v", err)
	}
	return status
}

func deleteStatus(t *testing.T, baseURL, token, path string) int {
	t.Helper()

	status, _, err := doJSON(http.MethodDelete, baseURL+path, token, nil)
	if err != nil {
		t.Fatalf("delete request: %v", err)
	}
	return status
}

func getStatus(t *testing.T, baseURL, path string) int {
	t.Helper()

	resp, err := http.Get(baseURL + path)
	if err != nil {
		t.Fatalf("get request: %v", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode
}

func postJSON(url, token string, payload any) (int, string, error) {
	return doJSON(http.MethodPost, url, token, payload)
}

func doJSON(method, url, token string, payload any) (int, string, error) {
	var reader io.Reader
	if payload != nil {
		body, err := json.Marshal(payload)
		if err != nil {
			return 0, "", err
		}
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		return 0, "", err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, strings.TrimSpace(string(body)), nil
}

func waitForPostgres(ctx context.Context) error {
	cfg := config.LoadConfig()
	dsn := buildPostgresURL(cfg)
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := db.PingContext(pingCtx)
		cancel()
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("postgres ping timeout: %w", err)
		case <-ticker.C:
		}
	}
}

func waitForHealth(ctx context.Context, url string) error {
	client := &http.Client{Timeout: 2 * time.Second}
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			if err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}
			return fmt.Errorf("health check failed with status")
		case <-ticker.C:
		}
	}
}

func runMigrations(root string) error {
	cfg := config.LoadConfig()
	dsn := buildPostgresURL(cfg)
	migrationsPath := filepath.Join(root, "internal", "db", "migrations")
	migrationsURL := "file://" + migrationsPath

	migrator, err := migrate.New(migrationsURL, dsn)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = migrator.Close()
	}()

	if err := migrator.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

func buildPostgresURL(cfg config.Config) string {
	sslmode := "disable"
	if cfg.Database.UseSSL {
		sslmode = "require"
	}
	host := fmt.Sprintf("%s:%d", cfg.Database.Host, cfg.Database.Port)
	return fmt.Sprintf(
		"postgres://%s:%s@%s/%s?sslmode=%s",
		cfg.Database.User,
		cfg.Database.Password,
		host,
		cfg.Database.DBName,
		sslmode,
	)
}

func startServer() (*server.Server, error) {
	_ = os.Setenv("JWT_SECRET", "test-secret")
	_ = os.Setenv("SERVER_PORT", fmt.Sprintf("%d", serverPort))
	_ = os.Setenv("DB_HOST", "localhost")
	_ = os.Setenv("DB_PORT", "5432")
	_ = os.Setenv("DB_USER", "bloghub")
	_ = os.Setenv("DB_PASSWORD", "password")
	_ = os.Setenv("DB_NAME", "bloghub_db")
	_ = os.Setenv("DB_USE_SSL", "false")

	cfg := config.LoadConfig()
	srv, err := server.New(context.Background(), cfg)
	if err != nil {
		return nil, err
	}

	go func() {
		_ = srv.Start()
	}()

	return srv, nil
}

func dockerCompose(ctx context.Context, root string, args ...string) error {
	composeFile := filepath.Join(root, "development", "docker-compose.yml")
	baseArgs := append([]string{"compose", "-f", composeFile}, args...)
	cmd := exec.CommandContext(ctx, "docker", baseArgs...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func repoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found")
		}
		dir = parent
	}
}
