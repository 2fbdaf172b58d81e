package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"imgadapt/internal/core/domain"
	"imgadapt/internal/core/port"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
)

type Transport string

const (
	TransportInline Transport = "inline"
	TransportURL    Transport = "url"
)

type Config struct {
	Endpoint         string
	APIKey           string
	Model            string
	Transport        Transport
	BaseURL          string
	PollInterval     time.Duration
	PollMaxAttempts  int
	RequestTimeout   time.Duration
	RetryAttempts    int
	DownloadAttempts int
	RetryBackoff     time.Duration
}

// APIMart talks to an asynchronous image task API: submit a generation, poll the task, fetch the image.
type APIMart struct {
	cfg    Config
	client *http.Client
	// downloads has no overall timeout: a result may stream for longer than RequestTimeout as long as
	// it keeps arriving. Connect and header waits are bounded by the transport, the rest by ctx.
	downloads *http.Client
}

func NewAPIMart(cfg Config) *APIMart {
	return &APIMart{
		cfg:       cfg,
		client:    &http.Client{Timeout: cfg.RequestTimeout},
		downloads: &http.Client{Transport: downloadTransport(cfg.RequestTimeout)},
	}
}

func downloadTransport(timeout time.Duration) *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.DialContext = (&net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}).DialContext
	t.TLSHandshakeTimeout = timeout
	t.ResponseHeaderTimeout = timeout
	return t
}

type generationRequest struct {
	Model     string   `json:"model"`
	Prompt    string   `json:"prompt"`
	Size      string   `json:"size"`
	N         int      `json:"n"`
	ImageURLs []string `json:"image_urls"`
}

type generationResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    []struct {
		TaskID string `json:"task_id"`
	} `json:"data"`
}

type taskResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Status   string `json:"status"`
		Progress int    `json:"progress"`
		Result   struct {
			Images []json.RawMessage `json:"images"`
		} `json:"result"`
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	} `json:"data"`
}

func (a *APIMart) Submit(ctx context.Context, req port.SubmitRequest) (string, error) {
	imageURL, err := a.imageURL(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrSubmission, err)
	}

	payload, err := json.Marshal(generationRequest{
		Model:     a.cfg.Model,
		Prompt:    req.Instruction,
		Size:      req.Ratio.Label,
		N:         1,
		ImageURLs: []string{imageURL},
	})
	if err != nil {
		return "", fmt.Errorf("error encoding generation request: %w", err)
	}

	l := log.With().Str("image", filepath.Base(req.ImagePath)).Str("size", req.Ratio.Label).Logger()
	l.Info().Str("transport", string(a.cfg.Transport)).Msg("submitting task")

	start := time.Now()
	status, body, err := a.do(ctx, http.MethodPost, a.cfg.Endpoint+"/v1/images/generations", payload)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrSubmission, err)
	}

	l.Debug().Dur("took", time.Since(start)).Bytes("body", body).Msg("submit response")

	if status < 200 || status > 299 {
		return "", fmt.Errorf("%w: http status %d", domain.ErrSubmission, status)
	}

	var result generationResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("%w: error unmarshalling response: %v", domain.ErrSubmission, err)
	}

	if result.Code != http.StatusOK {
		return "", fmt.Errorf("%w: api code %d: %s", domain.ErrSubmission, result.Code, result.Message)
	}

	if len(result.Data) == 0 || result.Data[0].TaskID == "" {
		return "", fmt.Errorf("%w: no task id in response", domain.ErrSubmission)
	}

	l.Info().Str("taskId", result.Data[0].TaskID).Msg("task submitted")

	return result.Data[0].TaskID, nil
}

func (a *APIMart) Poll(ctx context.Context, jobID string) (domain.RemoteJob, error) {
	url := a.cfg.Endpoint + "/v1/tasks/" + jobID
	l := log.With().Str("taskId", jobID).Logger()

	for attempt := 1; attempt <= a.cfg.PollMaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return domain.RemoteJob{}, ctx.Err()
		case <-time.After(a.cfg.PollInterval):
		}

		status, body, err := a.do(ctx, http.MethodGet, url, nil)
		if err != nil {
			return domain.RemoteJob{}, fmt.Errorf("error polling task %s: %w", jobID, err)
		}

		if status < 200 || status > 299 {
			return domain.RemoteJob{}, &domain.RemoteJobError{JobID: jobID, Detail: fmt.Sprintf("http status %d", status)}
		}

		var result taskResponse
		if err := json.Unmarshal(body, &result); err != nil {
			return domain.RemoteJob{}, fmt.Errorf("error unmarshalling task response: %w", err)
		}

		if result.Code != http.StatusOK {
			return domain.RemoteJob{}, &domain.RemoteJobError{
				JobID:  jobID,
				Detail: fmt.Sprintf("api code %d: %s", result.Code, result.Message),
			}
		}

		job := domain.RemoteJob{
			ID:       jobID,
			Status:   domain.JobStatus(result.Data.Status),
			Progress: result.Data.Progress,
		}

		l.Debug().
			Str("status", string(job.Status)).
			Int("progress", job.Progress).
			Int("attempt", attempt).
			Msg("polled task")

		switch job.Status {
		case domain.JobCompleted:
			if len(result.Data.Result.Images) == 0 {
				return job, &domain.RemoteJobError{JobID: jobID, Detail: "no images returned"}
			}

			ref, err := imageRef(result.Data.Result.Images[0])
			if err != nil {
				return job, &domain.RemoteJobError{JobID: jobID, Detail: err.Error()}
			}
			if ref == "" {
				return job, &domain.RemoteJobError{JobID: jobID, Detail: "empty image reference"}
			}

			job.ResultRef = ref
			l.Info().Int("attempts", attempt).Msg("task completed")
			return job, nil
		case domain.JobFailed:
			detail := result.Data.Error.Message
			if detail == "" {
				detail = "unknown error"
			}
			job.Error = detail
			return job, &domain.RemoteJobError{JobID: jobID, Detail: detail}
		}
	}

	return domain.RemoteJob{ID: jobID, Status: domain.JobProcessing},
		fmt.Errorf("%w: task %s after %d polls", domain.ErrPollTimeout, jobID, a.cfg.PollMaxAttempts)
}

// Download stores the result at dest. URLs are streamed to disk, data URLs are decoded.
func (a *APIMart) Download(ctx context.Context, ref string, dest string) error {
	if !strings.HasPrefix(ref, "http") {
		data, err := decodeDataURL(ref)
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrDownload, err)
		}
		if err := writeAtomic(dest, data); err != nil {
			return fmt.Errorf("%w: error writing result: %v", domain.ErrDownload, err)
		}
		return nil
	}

	_, err := withRetry(ctx, "download", a.cfg.DownloadAttempts, a.cfg.RetryBackoff, func() (struct{}, error) {
		return struct{}{}, a.stream(ctx, ref, dest)
	})
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrDownload, err)
	}

	log.Debug().Str("path", dest).Msg("result downloaded")

	return nil
}

// stream copies the body to a temp file in chunks and renames it into place. Transport failures,
// including a connection dropped mid-body, are retryable.
func (a *APIMart) stream(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("error creating request: %w", err))
	}

	res, err := a.downloads.Do(req)
	if err != nil {
		return fmt.Errorf("error executing request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return backoff.Permanent(fmt.Errorf("unexpected status code on download: %d", res.StatusCode))
	}

	tmp := dest + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("error creating result file: %w", err))
	}

	if _, err := io.Copy(f, res.Body); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("download interrupted: %w", err)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return backoff.Permanent(fmt.Errorf("error writing result file: %w", err))
	}

	if err := os.Rename(tmp, dest); err != nil {
		return backoff.Permanent(fmt.Errorf("error moving result file: %w", err))
	}

	return nil
}

func (a *APIMart) imageURL(req port.SubmitRequest) (string, error) {
	if a.cfg.Transport == TransportURL {
		if a.cfg.BaseURL == "" {
			return "", errors.New("url transport requires a base url")
		}
		return fmt.Sprintf("%s/api/temp-images/%s/%s",
			strings.TrimRight(a.cfg.BaseURL, "/"), req.BatchID, filepath.Base(req.ImagePath)), nil
	}

	return encodeDataURL(req.ImagePath)
}

// do executes a JSON request with the submit/poll retry budget. Only transport errors are retried;
// any HTTP response is returned to the caller.
func (a *APIMart) do(ctx context.Context, method, url string, payload []byte) (int, []byte, error) {
	type response struct {
		status int
		body   []byte
	}

	res, err := withRetry(ctx, method+" "+url, a.cfg.RetryAttempts, a.cfg.RetryBackoff, func() (response, error) {
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, url, body)
		if err != nil {
			return response{}, backoff.Permanent(fmt.Errorf("error creating request: %w", err))
		}

		req.Header.Add("Authorization", "Bearer "+a.cfg.APIKey)
		req.Header.Add("Content-Type", "application/json")

		res, err := a.client.Do(req)
		if err != nil {
			return response{}, fmt.Errorf("error executing request: %w", err)
		}
		defer res.Body.Close()

		data, err := io.ReadAll(res.Body)
		if err != nil {
			return response{}, fmt.Errorf("error reading response: %w", err)
		}

		return response{status: res.StatusCode, body: data}, nil
	})
	if err != nil {
		return 0, nil, err
	}

	return res.status, res.body, nil
}
