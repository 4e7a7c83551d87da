package cmd

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"veriseal/authenticity-api/internal/domain"
)

// seedCmd generates a deterministic demo dataset: a product catalog plus
// user scan histories with the behavior patterns the anomaly detector is
// tuned for.
//
// Cohorts:
//   - consistent retail users scanning a few products over a week
//   - a burst scanner (dozens of scans of one product within an hour)
//   - a probe scanner with a high INVALID failure rate
//   - a location hopper scanning from many cities in few scans
//   - an SME account with heavy but legitimate daily volume
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Generate a deterministic demo dataset",
	Run: func(cmd *cobra.Command, args []string) {
		out, _ := cmd.Flags().GetString("out")
		if err := generateSeed(out); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
	seedCmd.Flags().String("out", "data/seed.json", "output path for the generated dataset")
}

type seedScan struct {
	UserID string `json:"user_id"`
	domain.ScanEvent
}

type seedFile struct {
	Products []domain.Product `json:"products"`
	Scans    []seedScan       `json:"scans"`
}

func generateSeed(out string) error {
	rng := rand.New(rand.NewSource(42)) // deterministic seed for reproducibility
	baseTime := time.Now().UTC().Add(-7 * 24 * time.Hour)

	var file seedFile
	file.Products = generateProducts()

	file.Scans = append(file.Scans, generateNormalScanners(rng, baseTime, file.Products)...)
	file.Scans = append(file.Scans, generateBurstScanner(rng, baseTime, file.Products[0])...)
	file.Scans = append(file.Scans, generateProbeScanner(rng, baseTime, file.Products)...)
	file.Scans = append(file.Scans, generateLocationHopper(rng, baseTime, file.Products)...)
	file.Scans = append(file.Scans, generateSMEVolume(rng, baseTime, file.Products)...)

	// Shuffle so patterns aren't trivially grouped in the file.
	rng.Shuffle(len(file.Scans), func(i, j int) {
		file.Scans[i], file.Scans[j] = file.Scans[j], file.Scans[i]
	})

	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return fmt.Errorf("mkdir error: %w", err)
	}
	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("create error: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(file); err != nil {
		return fmt.Errorf("encode error: %w", err)
	}

	fmt.Printf("Generated %d products and %d scans → %s\n", len(file.Products), len(file.Scans), out)
	return nil
}

// ─── Product catalog ──────────────────────────────────────────────────────────

func generateProducts() []domain.Product {
	names := []struct {
		name  string
		orgID string
	}{
		{"Altiplano Single-Origin Coffee 500g", "org-andes-foods"},
		{"Sierra Trail Runner GTX", "org-sierra-apparel"},
		{"Vitalis Omega-3 Softgels 120ct", "org-vitalis-pharma"},
		{"Corriente Leather Wallet", "org-corriente-goods"},
		{"Nebbia Eau de Parfum 50ml", "org-nebbia-luxe"},
		{"Tundra Insulated Bottle 1L", "org-tundra-gear"},
		{"Helix Wireless Earbuds Pro", "org-helix-audio"},
		{"Manglar Raw Honey 350g", "org-andes-foods"},
	}

	now := time.Now().UTC()
	products := make([]domain.Product, len(names))
	for i, n := range names {
		products[i] = domain.Product{
			ID:           fmt.Sprintf("prod-%03d", i+1),
			Name:         n.name,
			SerialNumber: fmt.Sprintf("VS%06d%02d", 100000+i*7919, i+1),
			OrgID:        n.orgID,
			RegisteredAt: now.Add(-time.Duration(30+i*11) * 24 * time.Hour),
		}
	}
	return products
}

// ─── Normal retail users ──────────────────────────────────────────────────────

func generateNormalScanners(rng *rand.Rand, baseTime time.Time, products []domain.Product) []seedScan {
	users := []struct {
		id       string
		location string
	}{
		{"user-carla-01", "Bogota"},
		{"user-mateus-02", "Sao Paulo"},
		{"user-lucia-03", "Lima"},
		{"user-tomas-04", "Santiago"},
		{"user-ines-05", "Quito"},
	}

	var scans []seedScan
	for _, u := range users {
		n := 3 + rng.Intn(5) // a handful of scans over the week
		for i := 0; i < n; i++ {
			p := products[rng.Intn(len(products))]
			scans = append(scans, seedScan{
				UserID: u.id,
				ScanEvent: domain.ScanEvent{
					Timestamp: baseTime.Add(time.Duration(rng.Intn(7*24)) * time.Hour),
					ProductID: p.ID,
					Location:  u.location,
					Verdict:   domain.VerdictGenuine,
					AIScore:   80 + rng.Intn(16),
				},
			})
		}
	}
	return scans
}

// ─── Burst scanner ────────────────────────────────────────────────────────────

// One product scanned 25 times within an hour. Trips the frequency and
// product-diversity rules.
func generateBurstScanner(rng *rand.Rand, baseTime time.Time, p domain.Product) []seedScan {
	start := baseTime.Add(5 * 24 * time.Hour)
	scans := make([]seedScan, 25)
	for i := range scans {
		scans[i] = seedScan{
			UserID: "user-burst-90",
			ScanEvent: domain.ScanEvent{
				Timestamp: start.Add(time.Duration(i*2) * time.Minute),
				ProductID: p.ID,
				Location:  "Medellin",
				Verdict:   domain.VerdictGenuine,
				AIScore:   75 + rng.Intn(10),
			},
		}
	}
	return scans
}

// ─── Probe scanner ────────────────────────────────────────────────────────────

// Mostly INVALID results from guessing QR payloads. Trips the failure-rate rule.
func generateProbeScanner(rng *rand.Rand, baseTime time.Time, products []domain.Product) []seedScan {
	scans := make([]seedScan, 12)
	for i := range scans {
		verdict := domain.VerdictInvalid
		productID := ""
		if i%4 == 0 { // the occasional real hit among the probes
			p := products[rng.Intn(len(products))]
			productID = p.ID
			verdict = domain.VerdictSuspicious
		}
		scans[i] = seedScan{
			UserID: "user-probe-91",
			ScanEvent: domain.ScanEvent{
				Timestamp: baseTime.Add(time.Duration(i*3) * time.Hour),
				ProductID: productID,
				Location:  "Caracas",
				Verdict:   verdict,
				AIScore:   20 + rng.Intn(30),
			},
		}
	}
	return scans
}

// ─── Location hopper ──────────────────────────────────────────────────────────

func generateLocationHopper(rng *rand.Rand, baseTime time.Time, products []domain.Product) []seedScan {
	cities := []string{
		"Bogota", "Lima", "Santiago", "Buenos Aires", "Montevideo", "Asuncion",
		"La Paz", "Quito", "Caracas", "Panama City", "San Jose", "Guatemala City",
	}
	scans := make([]seedScan, len(cities))
	for i, city := range cities {
		p := products[rng.Intn(len(products))]
		scans[i] = seedScan{
			UserID: "user-hopper-92",
			ScanEvent: domain.ScanEvent{
				Timestamp: baseTime.Add(time.Duration(i*5) * time.Hour),
				ProductID: p.ID,
				Location:  city,
				Verdict:   domain.VerdictGenuine,
				AIScore:   70 + rng.Intn(20),
			},
		}
	}
	return scans
}

// ─── SME volume ───────────────────────────────────────────────────────────────

// A small-business account scanning inbound stock: 60 scans in the final
// day of the window. Trips the SME volume rule when role=sme is supplied.
func generateSMEVolume(rng *rand.Rand, baseTime time.Time, products []domain.Product) []seedScan {
	start := baseTime.Add(6 * 24 * time.Hour)
	scans := make([]seedScan, 60)
	for i := range scans {
		p := products[rng.Intn(len(products))]
		scans[i] = seedScan{
			UserID: "user-bodega-93",
			ScanEvent: domain.ScanEvent{
				Timestamp: start.Add(time.Duration(i*20) * time.Minute),
				ProductID: p.ID,
				Location:  "Cali",
				Verdict:   domain.VerdictGenuine,
				AIScore:   82 + rng.Intn(12),
			},
		}
	}
	return scans
}
