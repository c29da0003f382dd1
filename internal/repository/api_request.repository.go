package repository

import (
	"fmt"
	"time"

	"github.com/go-jet/jet/v2/postgres"
	"github.com/go-jet/jet/v2/qrm"
	"github.com/google/uuid"
)

// ApiRequest is one tracked inbound request. StatusCode and DurationMs are
// filled by Update once the handler finishes.
type ApiRequest struct {
	RequestID   uuid.UUID
	Method      string
	Route       string
	RequesterIP string
	StartTs     time.Time
	StatusCode  *int32
	DurationMs  *int64
}

type ApiRequestRepository interface {
	Add(db qrm.Queryable, ar ApiRequest) (*ApiRequest, error)
	Update(db qrm.Executable, ar ApiRequest) error
}

func NewApiRequestRepository() ApiRequestRepository {
	return apiRequestRepositoryHandler{}
}

type apiRequestRepositoryHandler struct{}

const insertApiRequestSql = `
INSERT INTO api_request (request_id, method, route, requester_ip, start_ts)
VALUES (#requestId, #method, #route, #requesterIp, #startTs)
RETURNING
  request_id AS request_id,
  method AS method,
  route AS route,
  requester_ip AS requester_ip,
  start_ts AS start_ts
`

func (h apiRequestRepositoryHandler) Add(db qrm.Queryable, ar ApiRequest) (*ApiRequest, error) {
	ar.RequestID = uuid.New()

	query := postgres.RawStatement(insertApiRequestSql, postgres.RawArgs{
		"#requestId":   ar.RequestID,
		"#method":      ar.Method,
		"#route":       ar.Route,
		"#requesterIp": ar.RequesterIP,
		"#startTs":     ar.StartTs,
	})

	out := &ApiRequest{}
	err := query.Query(db, out)
	if err != nil {
		return nil, fmt.Errorf("failed to insert API request: %w", err)
	}

	return out, nil
}

const updateApiRequestSql = `
UPDATE api_request
SET status_code = #statusCode, duration_ms = #durationMs
WHERE request_id = #requestId
`

func (h apiRequestRepositoryHandler) Update(db qrm.Executable, ar ApiRequest) error {
	query := postgres.RawStatement(updateApiRequestSql, postgres.RawArgs{
		"#statusCode": ar.StatusCode,
		"#durationMs": ar.DurationMs,
		"#requestId":  ar.RequestID,
	})

	_, err := query.Exec(db)
	if err != nil {
		return fmt.Errorf("failed to update API request: %w", err)
	}

	return nil
}
