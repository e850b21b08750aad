package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"parking-scheduler-backend/config"
	"parking-scheduler-backend/internal/parse"
	"parking-scheduler-backend/internal/scheduler"
)

// Submitter is satisfied by *scheduler.Scheduler.
type Submitter interface {
	Submit(req scheduler.Request) (scheduler.Admission, error)
}

// Summary counts the outcome of one poll.
type Summary struct {
	Fetched  int
	Admitted int
	Queued   int
	Rejected int
	Deferred int
	Skipped  int
}

// Service polls an upstream feed of parking requests and submits new ones.
type Service struct {
	cfg       config.FeedConfig
	unit      time.Duration
	submitter Submitter
	client    *http.Client
	seen      *cache.Cache
	log       zerolog.Logger
}

// NewService creates a feed poller. unit is the length of one requested minute.
func NewService(cfg config.FeedConfig, unit time.Duration, submitter Submitter, log zerolog.Logger) *Service {
	var transport http.RoundTripper = &http.Transport{}
	if cfg.HTTPProxy != "" {
		proxyURL, err := url.Parse(cfg.HTTPProxy)
		if err != nil {
			log.Warn().Err(err).Str("proxy", cfg.HTTPProxy).Msg("invalid proxy URL, feed will not use a proxy")
		} else {
			transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
		}
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 100
	}
	if unit <= 0 {
		unit = time.Minute
	}

	return &Service{
		cfg:       cfg,
		unit:      unit,
		submitter: submitter,
		client: &http.Client{
			Transport: transport,
			Timeout:   30 * time.Second,
		},
		// requests stay known for a day so a re-published page is not admitted twice
		seen: cache.New(24*time.Hour, time.Hour),
		log:  log,
	}
}

// Run polls until ctx is cancelled.
func (s *Service) Run(ctx context.Context) {
	if !s.cfg.Enabled {
		s.log.Info().Msg("feed is disabled, not starting")
		return
	}
	s.log.Info().Str("url", s.cfg.URL).Dur("interval", s.cfg.Interval).Msg("starting feed poller")

	s.PollOnce(ctx)

	timer := time.NewTimer(s.cfg.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("feed poller shutting down")
			return
		case <-timer.C:
			s.PollOnce(ctx)
			timer.Reset(s.cfg.Interval)
		}
	}
}

// PollOnce fetches every page and submits the items not seen before.
func (s *Service) PollOnce(ctx context.Context) Summary {
	var sum Summary

	var allItems []ApiItem
	total := 1
	for page := 1; (page-1)*s.cfg.PageSize < total; page++ {
		resp, err := s.fetchPage(ctx, page)
		if err != nil {
			s.log.Error().Err(err).Int("page", page).Msg("fetching page failed")
			break
		}
		if resp.Data.Total == 0 || len(resp.Data.Items) == 0 {
			break
		}
		total = resp.Data.Total
		allItems = append(allItems, resp.Data.Items...)
	}
	sum.Fetched = len(allItems)

	for _, item := range allItems {
		if _, dup := s.seen.Get(item.key()); dup {
			sum.Skipped++
			continue
		}

		req, err := s.toRequest(item)
		if err != nil {
			s.log.Warn().Err(err).Str("occupant", item.Occupant).Msg("skipping malformed request")
			s.seen.SetDefault(item.key(), struct{}{})
			sum.Rejected++
			continue
		}

		adm, err := s.submitter.Submit(req)
		if err != nil {
			var invalid *scheduler.InvalidAdmissionError
			switch {
			case errors.As(err, &invalid) && invalid.Retryable:
				// left unmarked so the next poll submits it again
				s.log.Info().Str("occupant", item.Occupant).Str("reason", invalid.Reason).Msg("request deferred")
				sum.Deferred++
				continue
			case errors.As(err, &invalid):
				s.log.Warn().Str("occupant", item.Occupant).Str("reason", invalid.Reason).Msg("request rejected")
				s.seen.SetDefault(item.key(), struct{}{})
			default:
				s.log.Error().Err(err).Str("occupant", item.Occupant).Msg("submitting request failed")
			}
			sum.Rejected++
			continue
		}

		s.seen.SetDefault(item.key(), struct{}{})
		if adm.Queued {
			sum.Queued++
		} else {
			sum.Admitted++
		}
	}

	s.log.Info().
		Int("fetched", sum.Fetched).
		Int("admitted", sum.Admitted).
		Int("queued", sum.Queued).
		Int("rejected", sum.Rejected).
		Int("deferred", sum.Deferred).
		Int("skipped", sum.Skipped).
		Msg("feed poll finished")
	return sum
}

func (s *Service) toRequest(item ApiItem) (scheduler.Request, error) {
	if item.Occupant == "" {
		return scheduler.Request{}, fmt.Errorf("item %q has no occupant", item.ID)
	}
	if item.Minutes <= 0 {
		return scheduler.Request{}, fmt.Errorf("item %q asks for %g minutes", item.ID, item.Minutes)
	}
	stay, err := parse.StayDuration(item.Minutes, s.unit)
	if err != nil {
		return scheduler.Request{}, fmt.Errorf("item %q: %w", item.ID, err)
	}
	req := scheduler.Request{
		OccupantID: item.Occupant,
		Tier:       scheduler.Tier(item.Tier),
		Duration:   stay,
	}
	if item.Slot != "" {
		slotID, err := parse.NormalizeSlot(item.Slot)
		if err != nil {
			return scheduler.Request{}, err
		}
		req.SlotID = slotID
	}
	return req, nil
}

// fetchPage fetches a single page of requests from the upstream feed.
func (s *Service) fetchPage(ctx context.Context, page int) (*ApiResponse, error) {
	jsonBody, err := json.Marshal(map[string]int{"page": page, "pageSize": s.cfg.PageSize})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.URL, bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range s.cfg.Headers {
		req.Header.Set(key, value)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("received non-200 status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var apiResp ApiResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal api response: %w", err)
	}

	if apiResp.Code != 0 {
		return nil, fmt.Errorf("API returned non-zero application code: %d", apiResp.Code)
	}

	return &apiResp, nil
}
