package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"time"

	"vigil/internal/decision"
	"vigil/internal/detect"
	"vigil/internal/scenario"
	"vigil/internal/store"
)

// 向 SQLite 写入模拟结论与检测事件，用于本地联调看板。
// 用法: go run scripts/seed_mock_data.go [db_path]
// 默认 db_path: data/vigil.db
func main() {
	dbPath := "data/vigil.db"
	if len(os.Args) > 1 && strings.TrimSpace(os.Args[1]) != "" {
		dbPath = strings.TrimSpace(os.Args[1])
	}

	st, err := store.Open(dbPath)
	if err != nil {
		panic(err)
	}
	defer st.Close()

	ctx := context.Background()
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	cameras := []string{"cam-01", "cam-02", "cam-03", "edge-01"}
	all := scenario.All()

	total := 40
	for i := 0; i < total; i++ {
		cameraID := cameras[rng.Intn(len(cameras))]
		ts := time.Now().Add(-time.Duration(rng.Intn(72)) * time.Hour)

		var (
			events     []detect.DetectionEvent
			violations []scenario.Scenario
			falsePos   []scenario.Scenario
			actions    = make(map[scenario.Scenario]string)
		)
		for _, sc := range all {
			detected := rng.Intn(10) < 2
			events = append(events, detect.DetectionEvent{
				Scenario:    sc,
				CameraID:    cameraID,
				Timestamp:   ts,
				RawResponse: mockResponse(sc, detected),
				Detected:    detected,
			})
			if !detected {
				continue
			}
			// 七成检出被复核确认
			if rng.Intn(10) < 7 {
				violations = append(violations, sc)
				if entry, err := scenario.Lookup(sc); err == nil {
					actions[sc] = entry.Action
				}
			} else {
				falsePos = append(falsePos, sc)
			}
		}

		verdict := decision.SafetyVerdict{
			CameraID:           cameraID,
			Timestamp:          ts,
			TruePositives:      violations,
			Violations:         violations,
			FalsePositives:     falsePos,
			ActionRequired:     len(violations) > 0,
			RecommendedActions: actions,
		}
		if err := st.SaveAnalysis(ctx, verdict, events); err != nil {
			panic(err)
		}
	}

	fmt.Printf("已写入 %d 条模拟结论到 %s\n", total, dbPath)
}

func mockResponse(sc scenario.Scenario, detected bool) string {
	if detected {
		return fmt.Sprintf("Yes, the image appears to show signs consistent with %s.", sc.DisplayName())
	}
	return "No, nothing of concern is visible in this frame."
}
