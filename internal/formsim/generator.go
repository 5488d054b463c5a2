package formsim

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/google/uuid"

	"github.com/hackit-tw/recruit/internal/adapters/http/api"
	"github.com/hackit-tw/recruit/pkg/logger"
)

const randomFloatDivisor = 1000000

var (
	familyNames  = []string{"Chen", "Lin", "Huang", "Chang", "Lee", "Wang", "Wu", "Liu"}  //nolint:gochecknoglobals // fixed sample
	givenNames   = []string{"Mei", "Yu-Ting", "Chia-Hao", "Hsin", "Po-Wei", "An", "Jun"} //nolint:gochecknoglobals // fixed sample
	cities       = []string{"Taipei", "Taichung", "Tainan", "Kaohsiung", "Hsinchu"}     //nolint:gochecknoglobals // fixed sample
	schoolStages = []string{"高一", "高二", "高三", "其他"}                                     //nolint:gochecknoglobals // fixed sample
	teams        = []string{"公關組", "活動企劃組", "美術組", "資訊組", "影音組"}                      //nolint:gochecknoglobals // fixed sample
)

// getRandomFloat returns a random float64 between 0.0 and 1.0 using crypto/rand.
func getRandomFloat() float64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(randomFloatDivisor))
	return float64(n.Int64()) / float64(randomFloatDivisor)
}

func pick(from []string) string {
	n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(from))))
	return from[n.Int64()]
}

// generatePayloads builds config.Submissions form bodies keyed by fm. A
// DuplicateRate share reuses the email of an earlier payload.
func generatePayloads(ctx context.Context, config *Config, fm api.FieldMap, stats *Stats) ([]Payload, error) {
	logger.Get().Info(ctx, "generating form submissions", logger.Int("submissions", config.Submissions))

	payloads := make([]Payload, 0, config.Submissions)
	for i := 0; i < config.Submissions; i++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("context cancelled during generation: %w", err)
		}
		email := fmt.Sprintf("applicant-%s@example.org", uuid.NewString()[:8])
		dup := i > 0 && getRandomFloat() < config.DuplicateRate
		if dup {
			email = payloads[i/2].Email
		}
		payloads = append(payloads, generateSingle(fm, email, dup))
	}

	stats.Generated = len(payloads)
	logger.Get().Info(ctx, "generated form submissions", logger.Int("count", len(payloads)))
	return payloads, nil
}

func generateSingle(fm api.FieldMap, email string, dup bool) Payload {
	f := fm.Applicant
	chosen := []string{pick(teams)}
	if second := pick(teams); second != chosen[0] {
		chosen = append(chosen, second)
	}
	answers := []Answer{
		{ID: f.Name, Value: pick(familyNames) + " " + pick(givenNames)},
		{ID: f.Email, Value: email},
		{ID: f.Phone, Value: fmt.Sprintf("09%08d", int(getRandomFloat()*1e8))},
		{ID: f.SchoolStage, Value: map[string][]string{"value": {pick(schoolStages)}}},
		{ID: f.City, Value: pick(cities)},
		{ID: f.Teams, Value: map[string][]string{"value": chosen}},
	}
	for _, id := range f.Introduction {
		answers = append(answers, Answer{ID: id, Value: "I would like to help with " + chosen[0] + "."})
	}
	return Payload{Answers: answers, Email: email, Duplicate: dup}
}
