package secrets

import (
	"context"
	"fmt"
	"time"

	"github.com/voicehive-hotels/orchestrator/internal/domain"
)

// AnomalyDetector inspects a secret's recent access history and flags
// irregularities. Each detector is independent and additive; a single
// access window can trigger more than one category.
type AnomalyDetector struct {
	repo Repository

	excessiveAccessThreshold int           // accesses within window
	excessiveAccessWindow    time.Duration
	failedAttemptsThreshold  int
	offHoursRatio            float64 // fraction of accesses outside business hours to flag
	allowedRegions           map[string]struct{}
	concurrentWindow         time.Duration
	concurrentThreshold      int

	onAnomaly func(domain.Anomaly)
}

func NewAnomalyDetector(repo Repository, allowedRegions []string, onAnomaly func(domain.Anomaly)) *AnomalyDetector {
	regions := make(map[string]struct{}, len(allowedRegions))
	for _, r := range allowedRegions {
		regions[r] = struct{}{}
	}
	return &AnomalyDetector{
		repo:                     repo,
		excessiveAccessThreshold: 100,
		excessiveAccessWindow:    time.Hour,
		failedAttemptsThreshold:  5,
		offHoursRatio:            0.70,
		allowedRegions:           regions,
		concurrentWindow:         10 * time.Second,
		concurrentThreshold:      10,
		onAnomaly:                onAnomaly,
	}
}

// Inspect evaluates every category against the secret's recent access
// window and returns every anomaly found (possibly none).
func (d *AnomalyDetector) Inspect(ctx context.Context, secretID string) ([]domain.Anomaly, error) {
	events, err := d.repo.RecentAccess(ctx, secretID, time.Now().Add(-24*time.Hour))
	if err != nil {
		return nil, err
	}

	var anomalies []domain.Anomaly
	anomalies = append(anomalies, d.checkExcessiveAccess(secretID, events)...)
	anomalies = append(anomalies, d.checkFailedAttempts(secretID, events)...)
	anomalies = append(anomalies, d.checkUnusualTime(secretID, events)...)
	anomalies = append(anomalies, d.checkGeographic(secretID, events)...)
	anomalies = append(anomalies, d.checkConcurrentAccess(secretID, events)...)

	for _, a := range anomalies {
		if d.onAnomaly != nil {
			d.onAnomaly(a)
		}
	}
	return anomalies, nil
}

func (d *AnomalyDetector) checkExcessiveAccess(secretID string, events []domain.SecretAccessEvent) []domain.Anomaly {
	cutoff := time.Now().Add(-d.excessiveAccessWindow)
	count := 0
	for _, e := range events {
		if e.OccurredAt.After(cutoff) {
			count++
		}
	}
	if count <= d.excessiveAccessThreshold {
		return nil
	}
	return []domain.Anomaly{{
		SecretID:   secretID,
		Category:   domain.AnomalyExcessiveAccess,
		RiskScore:  scoreAboveThreshold(count, d.excessiveAccessThreshold, 40, 90),
		Detail:     fmt.Sprintf("%d accesses within %s", count, d.excessiveAccessWindow),
		DetectedAt: time.Now(),
	}}
}

func (d *AnomalyDetector) checkFailedAttempts(secretID string, events []domain.SecretAccessEvent) []domain.Anomaly {
	failed := 0
	for _, e := range events {
		if !e.Successful {
			failed++
		}
	}
	if failed < d.failedAttemptsThreshold {
		return nil
	}
	return []domain.Anomaly{{
		SecretID:   secretID,
		Category:   domain.AnomalyFailedAttempts,
		RiskScore:  scoreAboveThreshold(failed, d.failedAttemptsThreshold, 50, 95),
		Detail:     fmt.Sprintf("%d failed access attempts in the last 24h", failed),
		DetectedAt: time.Now(),
	}}
}

func (d *AnomalyDetector) checkUnusualTime(secretID string, events []domain.SecretAccessEvent) []domain.Anomaly {
	if len(events) == 0 {
		return nil
	}
	offHours := 0
	for _, e := range events {
		h := e.OccurredAt.Hour()
		if h < 7 || h >= 20 {
			offHours++
		}
	}
	ratio := float64(offHours) / float64(len(events))
	if ratio <= d.offHoursRatio {
		return nil
	}
	return []domain.Anomaly{{
		SecretID:   secretID,
		Category:   domain.AnomalyUnusualTime,
		RiskScore:  int(ratio * 80),
		Detail:     fmt.Sprintf("%.0f%% of accesses occurred off-hours", ratio*100),
		DetectedAt: time.Now(),
	}}
}

func (d *AnomalyDetector) checkGeographic(secretID string, events []domain.SecretAccessEvent) []domain.Anomaly {
	if len(d.allowedRegions) == 0 {
		return nil
	}
	var anomalies []domain.Anomaly
	for _, e := range events {
		if e.Region == "" {
			continue
		}
		if _, ok := d.allowedRegions[e.Region]; !ok {
			anomalies = append(anomalies, domain.Anomaly{
				SecretID:   secretID,
				Category:   domain.AnomalyGeographic,
				RiskScore:  85,
				Detail:     fmt.Sprintf("access from disallowed region %s", e.Region),
				DetectedAt: time.Now(),
			})
		}
	}
	return anomalies
}

func (d *AnomalyDetector) checkConcurrentAccess(secretID string, events []domain.SecretAccessEvent) []domain.Anomaly {
	// Sliding window count of accesses whose timestamps fall within
	// concurrentWindow of each other.
	for i := range events {
		count := 1
		for j := range events {
			if i == j {
				continue
			}
			if absDuration(events[i].OccurredAt.Sub(events[j].OccurredAt)) <= d.concurrentWindow {
				count++
			}
		}
		if count >= d.concurrentThreshold {
			return []domain.Anomaly{{
				SecretID:   secretID,
				Category:   domain.AnomalyConcurrentAccess,
				RiskScore:  75,
				Detail:     fmt.Sprintf("%d accesses within a %s window", count, d.concurrentWindow),
				DetectedAt: time.Now(),
			}}
		}
	}
	return nil
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

func scoreAboveThreshold(count, threshold, base, cap int) int {
	if threshold <= 0 {
		return base
	}
	excess := count - threshold
	score := base + excess
	if score > cap {
		return cap
	}
	return score
}
