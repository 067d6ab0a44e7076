// Package main drives one upload through a running API: upload, async
// analysis, job polling and report fetch.
//
// Usage:
//
//	API_BASE_URL=http://localhost:8080 go run ./scripts/smoke internal/transcript/testdata/pc_multi_day.txt
//	JWT_SECRET=... go run ./scripts/smoke talk.txt   # binds the upload to a test user
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	maxWait      = 3 * time.Minute
	pollInterval = 2 * time.Second
	smokeUser    = "smoke-test-user"
)

var (
	apiBase string
	token   string
	client  = &http.Client{Timeout: 2 * time.Minute}
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run ./scripts/smoke <transcript.txt>")
		os.Exit(1)
	}
	path := os.Args[1]

	apiBase = strings.TrimRight(os.Getenv("API_BASE_URL"), "/")
	if apiBase == "" {
		apiBase = "http://localhost:8080"
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		var err error
		token, err = mintToken(secret)
		if err != nil {
			fail("signing token: %v", err)
		}
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		fail("reading transcript: %v", err)
	}

	var upload struct {
		UploadID  string `json:"upload_id"`
		Anonymous bool   `json:"anonymous"`
	}
	call(http.MethodPost, "/uploads?filename="+url.QueryEscape(filepath.Base(path)), raw, http.StatusCreated, &upload)
	fmt.Printf("uploaded %s as %s (anonymous=%v)\n", path, upload.UploadID, upload.Anonymous)

	body, _ := json.Marshal(map[string]any{"upload_id": upload.UploadID, "async": true})
	var accepted struct {
		JobID string `json:"job_id"`
	}
	call(http.MethodPost, "/analyses", body, http.StatusAccepted, &accepted)
	fmt.Printf("queued job %s\n", accepted.JobID)

	analysisID := waitForJob(accepted.JobID)

	var view struct {
		RoomRiskLevel    string  `json:"roomRiskLevel"`
		MessageCount     int     `json:"messageCount"`
		Duration         int     `json:"duration"`
		KeyPhrasePercent float64 `json:"keyPhrasePercent"`
		Report           struct {
			AIRisk struct {
				Description struct {
					Summary string   `json:"summary"`
					Reasons []string `json:"reasons"`
				} `json:"description"`
			} `json:"aiRisk"`
		} `json:"report"`
	}
	call(http.MethodGet, "/analyses/"+analysisID, nil, http.StatusOK, &view)

	fmt.Println("---")
	fmt.Printf("analysis:    %s\n", analysisID)
	fmt.Printf("room risk:   %s\n", view.RoomRiskLevel)
	fmt.Printf("messages:    %d over %d days\n", view.MessageCount, view.Duration)
	fmt.Printf("key phrases: %.1f%%\n", view.KeyPhrasePercent)
	fmt.Printf("summary:     %s\n", view.Report.AIRisk.Description.Summary)
	for _, r := range view.Report.AIRisk.Description.Reasons {
		fmt.Printf("  - %s\n", r)
	}
}

func waitForJob(jobID string) string {
	deadline := time.Now().Add(maxWait)
	for time.Now().Before(deadline) {
		var job struct {
			Status       string `json:"status"`
			AnalysisID   string `json:"analysisId"`
			ErrorMessage string `json:"errorMessage"`
		}
		call(http.MethodGet, "/jobs/"+jobID, nil, http.StatusOK, &job)
		switch job.Status {
		case "completed":
			return job.AnalysisID
		case "failed":
			fail("job %s failed: %s", jobID, job.ErrorMessage)
		}
		time.Sleep(pollInterval)
	}
	fail("job %s did not finish within %s", jobID, maxWait)
	return ""
}

func call(method, path string, body []byte, wantStatus int, out any) {
	req, err := http.NewRequest(method, apiBase+path, bytes.NewReader(body))
	if err != nil {
		fail("building request: %v", err)
	}
	if method == http.MethodPost && strings.HasPrefix(path, "/analyses") {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		fail("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != wantStatus {
		fail("%s %s: HTTP %d: %s", method, path, resp.StatusCode, string(raw))
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			fail("%s %s: decoding response: %v", method, path, err)
		}
	}
}

func mintToken(secret string) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   smokeUser,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func fail(format string, args ...any) {
	fmt.Printf("Error: "+format+"\n", args...)
	os.Exit(1)
}
