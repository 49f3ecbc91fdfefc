// Package steamapi bridges to the Steam Web API and Steam Workshop,
// grounded directly in the original implementation's SteamService: user
// lookups, workshop map-name lookups, and workshop map downloads via an
// external DepotDownloader process.
package steamapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/kz-league/cs2kz-api/internal/id"
)

// WorkshopID identifies a Steam Workshop item.
type WorkshopID uint32

// Service is the Steam Web API / Workshop bridge.
type Service struct {
	apiKey             string
	httpClient         *http.Client
	workshopAssetDir   string
	depotDownloaderBin string
	downloadSemaphore  chan struct{}
}

// NewService builds a Service. maxConcurrentDownloads bounds how many
// DepotDownloader processes may run at once.
func NewService(apiKey, workshopAssetDir, depotDownloaderBin string, maxConcurrentDownloads int) *Service {
	if maxConcurrentDownloads < 1 {
		maxConcurrentDownloads = 1
	}
	return &Service{
		apiKey:             apiKey,
		httpClient:         &http.Client{Timeout: 15 * time.Second},
		workshopAssetDir:   workshopAssetDir,
		depotDownloaderBin: depotDownloaderBin,
		downloadSemaphore:  make(chan struct{}, maxConcurrentDownloads),
	}
}

// User is the subset of a Steam profile cs2kz cares about.
type User struct {
	SteamID    id.SteamID
	Username   string
	RealName   string
	Country    string
	ProfileURL string
	AvatarURL  string
}

type getUserResponse struct {
	Response struct {
		Players []struct {
			SteamID        string `json:"steamid"`
			PersonaName    string `json:"personaname"`
			RealName       string `json:"realname"`
			LocCountryCode string `json:"loccountrycode"`
			ProfileURL     string `json:"profileurl"`
			Avatar         string `json:"avatar"`
		} `json:"players"`
	} `json:"response"`
}

// GetUser fetches a Steam profile via ISteamUser/GetPlayerSummaries.
func (s *Service) GetUser(ctx context.Context, steamID id.SteamID) (User, error) {
	const endpoint = "https://api.steampowered.com/ISteamUser/GetPlayerSummaries/v0002"

	q := url.Values{
		"steamids": {fmt.Sprintf("%d", steamID.Uint64())},
		"key":      {s.apiKey},
	}

	var out getUserResponse
	if err := s.getJSON(ctx, endpoint+"?"+q.Encode(), &out); err != nil {
		return User{}, fmt.Errorf("fetching steam user: %w", err)
	}
	if len(out.Response.Players) != 1 {
		return User{}, fmt.Errorf("steam returned %d players, expected 1", len(out.Response.Players))
	}

	p := out.Response.Players[0]
	return User{
		SteamID:    steamID,
		Username:   p.PersonaName,
		RealName:   p.RealName,
		Country:    p.LocCountryCode,
		ProfileURL: p.ProfileURL,
		AvatarURL:  p.Avatar,
	}, nil
}

type getMapNameResponse struct {
	Response struct {
		PublishedFileDetails []struct {
			Title string `json:"title"`
		} `json:"publishedfiledetails"`
	} `json:"response"`
}

// GetWorkshopMapName fetches a workshop item's display name via
// ISteamRemoteStorage/GetPublishedFileDetails.
func (s *Service) GetWorkshopMapName(ctx context.Context, workshopID WorkshopID) (string, error) {
	const endpoint = "https://api.steampowered.com/ISteamRemoteStorage/GetPublishedFileDetails/v1"

	form := url.Values{
		"publishedfileids[0]": {fmt.Sprintf("%d", workshopID)},
		"itemcount":           {"1"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return "", err
	}
	req.URL.RawQuery = form.Encode()

	var out getMapNameResponse
	if err := s.getJSON(ctx, req.URL.String(), &out); err != nil {
		return "", fmt.Errorf("fetching workshop map name: %w", err)
	}
	if len(out.Response.PublishedFileDetails) != 1 {
		return "", fmt.Errorf("steam returned %d workshop items, expected 1", len(out.Response.PublishedFileDetails))
	}

	return out.Response.PublishedFileDetails[0].Title, nil
}

// DownloadMap shells out to DepotDownloader to fetch a workshop map's VPK,
// bounded by the service's download semaphore (spec's concurrency limit on
// outbound workshop downloads).
func (s *Service) DownloadMap(ctx context.Context, workshopID WorkshopID) (string, error) {
	select {
	case s.downloadSemaphore <- struct{}{}:
		defer func() { <-s.downloadSemaphore }()
	case <-ctx.Done():
		return "", ctx.Err()
	}

	cmd := exec.CommandContext(ctx, s.depotDownloaderBin,
		"-app", "730",
		"-pubfile", fmt.Sprintf("%d", workshopID),
		"-dir", s.workshopAssetDir,
	)

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("running DepotDownloader: %w", err)
	}

	return filepath.Join(s.workshopAssetDir, fmt.Sprintf("%d.vpk", workshopID)), nil
}

func (s *Service) getJSON(ctx context.Context, fullURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("steam api returned status %d", resp.StatusCode)
	}

	return decodeJSON(resp.Body, out)
}
