// Package osm finds hospitals near a point through the Overpass API.
// Overpass is a shared public service: calls are limited to one per second
// regardless of how many handlers ask.
package osm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/vietcare/medsearch/internal/core/domain"
)

const (
	defaultRadiusKM = 5.0
	defaultLimit    = 10
	earthRadiusKM   = 6371.0
)

type Client struct {
	endpoint   string
	httpClient *http.Client
	limiter    *rate.Limiter
}

func New(endpoint string) *Client {
	return &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

func (c *Client) FindNearby(ctx context.Context, q domain.HospitalQuery) ([]domain.Hospital, error) {
	if q.Lat < -90 || q.Lat > 90 || q.Lon < -180 || q.Lon > 180 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "find hospitals",
			fmt.Errorf("coordinates out of range: %v,%v", q.Lat, q.Lon))
	}
	radiusKM := q.RadiusKM
	if radiusKM <= 0 {
		radiusKM = defaultRadiusKM
	}
	limit := q.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	query := buildOverpassQuery(q.Lat, q.Lon, radiusKM*1000)
	body := url.Values{"data": {query}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader([]byte(body)))
	if err != nil {
		return nil, fmt.Errorf("create overpass request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("overpass request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("overpass status: %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}

	var overpass struct {
		Elements []struct {
			Lat    float64           `json:"lat"`
			Lon    float64           `json:"lon"`
			Center *struct {
				Lat float64 `json:"lat"`
				Lon float64 `json:"lon"`
			} `json:"center"`
			Tags map[string]string `json:"tags"`
		} `json:"elements"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&overpass); err != nil {
		return nil, fmt.Errorf("decode overpass response: %w", err)
	}

	hospitals := make([]domain.Hospital, 0, len(overpass.Elements))
	for _, el := range overpass.Elements {
		lat, lon := el.Lat, el.Lon
		if el.Center != nil {
			lat, lon = el.Center.Lat, el.Center.Lon
		}
		name := el.Tags["name"]
		if name == "" {
			continue
		}

		h := domain.Hospital{
			Name:       name,
			Address:    buildAddress(el.Tags),
			Lat:        lat,
			Lon:        lon,
			DistanceKM: haversineKM(q.Lat, q.Lon, lat, lon),
			Specialty:  el.Tags["healthcare:speciality"],
			Phone:      firstNonEmpty(el.Tags["phone"], el.Tags["contact:phone"]),
		}
		if q.Specialty != "" && !strings.Contains(strings.ToLower(h.Specialty), strings.ToLower(q.Specialty)) {
			continue
		}
		hospitals = append(hospitals, h)
	}

	sort.Slice(hospitals, func(i, j int) bool { return hospitals[i].DistanceKM < hospitals[j].DistanceKM })
	if len(hospitals) > limit {
		hospitals = hospitals[:limit]
	}
	return hospitals, nil
}

func buildOverpassQuery(lat, lon, radiusM float64) string {
	return fmt.Sprintf(`[out:json][timeout:25];
(
  node["amenity"="hospital"](around:%.0f,%f,%f);
  way["amenity"="hospital"](around:%.0f,%f,%f);
  relation["amenity"="hospital"](around:%.0f,%f,%f);
);
out center;`, radiusM, lat, lon, radiusM, lat, lon, radiusM, lat, lon)
}

func buildAddress(tags map[string]string) string {
	parts := make([]string, 0, 4)
	for _, key := range []string{"addr:housenumber", "addr:street", "addr:district", "addr:city"} {
		if v := tags[key]; v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, ", ")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func haversineKM(lat1, lon1, lat2, lon2 float64) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKM * math.Asin(math.Sqrt(a))
}
