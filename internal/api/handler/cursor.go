package handler

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cuongbtq/workflow-guardian/internal/storage"
)

// DecodeRunCursor parses a base64 "unixnano|run_id" cursor; empty input means first page
func DecodeRunCursor(cursorStr string) (*storage.RunCursor, error) {
	if cursorStr == "" {
		return nil, nil
	}

	decoded, err := base64.StdEncoding.DecodeString(cursorStr)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor encoding: %w", err)
	}

	createdPart, runID, ok := strings.Cut(string(decoded), "|")
	if !ok || runID == "" {
		return nil, fmt.Errorf("invalid cursor format")
	}

	createdAt, err := strconv.ParseInt(createdPart, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid createdAt in cursor: %w", err)
	}

	return &storage.RunCursor{
		CreatedAt: time.Unix(0, createdAt).UTC(),
		RunID:     runID,
	}, nil
}

func EncodeRunCursor(cursor *storage.RunCursor) string {
	cs := fmt.Sprintf("%d|%s", cursor.CreatedAt.UnixNano(), cursor.RunID)
	return base64.StdEncoding.EncodeToString([]byte(cs))
}
