package calendar

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const maxCalendarSize = 16 << 20

var httpClient = &http.Client{Timeout: 30 * time.Second}

// Fetch downloads an iCalendar feed
func Fetch(ctx context.Context, icalURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, icalURL, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid calendar URL: %w", err)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP request failed: %s", resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxCalendarSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if len(body) > maxCalendarSize {
		return nil, fmt.Errorf("calendar exceeds %d MiB", maxCalendarSize>>20)
	}

	if err := validateICalFormat(string(body)); err != nil {
		return nil, err
	}
	return body, nil
}

func validateICalFormat(bodyStr string) error {
	trimmed := strings.TrimSpace(bodyStr)
	upperBody := strings.ToUpper(trimmed)
	if strings.HasPrefix(upperBody, "<!DOCTYPE") || strings.HasPrefix(upperBody, "<HTML") {
		return fmt.Errorf("received HTML instead of iCalendar data - check if URL requires authentication")
	}

	if !strings.HasPrefix(upperBody, "BEGIN:VCALENDAR") {
		preview := trimmed
		if len(preview) > 100 {
			preview = preview[:100]
		}
		return fmt.Errorf("invalid iCalendar format - expected BEGIN:VCALENDAR, got: %s", preview)
	}

	return nil
}
