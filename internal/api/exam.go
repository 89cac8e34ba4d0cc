package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/validator"
)

// AlreadyCompletedError is returned by StartAttempt when the backend
// answers 403 with the student's finished result.
type AlreadyCompletedError struct {
	Result json.RawMessage
}

func (e *AlreadyCompletedError) Error() string {
	return "exam already completed"
}

// GetExam fetches the exam paper. The body may be the definition itself or
// wrapped as {"exam": ...}.
func (c *Client) GetExam(ctx context.Context, examID string) (*model.ExamDefinition, error) {
	body, status, err := c.do(ctx, http.MethodGet, examPath(examID, ""), nil, true)
	if err != nil {
		return nil, err
	}
	if !isSuccess(status) {
		return nil, decodeHTTPError(status, body)
	}

	var wrapped struct {
		Exam *model.ExamDefinition `json:"exam"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, fmt.Errorf("decode exam: %w", err)
	}
	exam := wrapped.Exam
	if exam == nil {
		exam = &model.ExamDefinition{}
		if err := json.Unmarshal(body, exam); err != nil {
			return nil, fmt.Errorf("decode exam: %w", err)
		}
	}
	if err := validator.Struct(exam); err != nil {
		return nil, fmt.Errorf("invalid exam payload: %w", err)
	}
	return exam, nil
}

// CheckAccess asks whether the current student may enter the exam.
func (c *Client) CheckAccess(ctx context.Context, examID string) (model.AccessDecision, error) {
	body, status, err := c.do(ctx, http.MethodPost, examPath(examID, "check-access"), struct{}{}, true)
	if err != nil {
		return model.AccessDecision{}, err
	}
	if !isSuccess(status) {
		return model.AccessDecision{}, decodeHTTPError(status, body)
	}
	var res model.AccessDecision
	if err := json.Unmarshal(body, &res); err != nil {
		return model.AccessDecision{}, fmt.Errorf("decode access decision: %w", err)
	}
	return res, nil
}

type startResponse struct {
	Result json.RawMessage `json:"result"`
}

// StartAttempt creates (or resumes) the attempt and returns the
// server-issued deadline.
func (c *Client) StartAttempt(ctx context.Context, examID string) (*model.AttemptSession, error) {
	body, status, err := c.do(ctx, http.MethodPost, examPath(examID, "start"), struct{}{}, true)
	if err != nil {
		return nil, err
	}

	var res startResponse
	decodeErr := json.Unmarshal(body, &res)

	if status == http.StatusForbidden && decodeErr == nil && len(res.Result) > 0 && string(res.Result) != "null" {
		return nil, &AlreadyCompletedError{Result: res.Result}
	}
	if !isSuccess(status) {
		return nil, decodeHTTPError(status, body)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("decode start response: %w", decodeErr)
	}
	if len(res.Result) == 0 {
		return nil, fmt.Errorf("decode start response: missing result")
	}

	var attempt model.AttemptSession
	if err := json.Unmarshal(res.Result, &attempt); err != nil {
		return nil, fmt.Errorf("decode attempt: %w", err)
	}
	if attempt.EndTime.IsZero() {
		return nil, fmt.Errorf("decode attempt: missing endTime")
	}
	if attempt.ExamID == "" {
		attempt.ExamID = model.ID(examID)
	}
	if attempt.Status == "" {
		attempt.Status = model.AttemptStatusInProgress
	}
	return &attempt, nil
}

// Submit sends the final answers.
func (c *Client) Submit(ctx context.Context, examID string, req model.SubmitRequest) error {
	body, status, err := c.do(ctx, http.MethodPost, examPath(examID, "submit"), req, true)
	if err != nil {
		return err
	}
	if !isSuccess(status) {
		return decodeHTTPError(status, body)
	}
	return nil
}

// ReportViolation logs a client-observed violation. Callers treat failures
// as non-fatal.
func (c *Client) ReportViolation(ctx context.Context, examID string, report model.ViolationReport) error {
	body, status, err := c.do(ctx, http.MethodPost, examPath(examID, "violation"), report, true)
	if err != nil {
		return err
	}
	if !isSuccess(status) {
		return decodeHTTPError(status, body)
	}
	return nil
}
