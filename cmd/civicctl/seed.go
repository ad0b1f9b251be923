package main

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/Jwl06/civicledger360/client"
	"github.com/Jwl06/civicledger360/models"
	"github.com/Jwl06/civicledger360/services"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var samplePlates = []string{
	"KA01P3249", "KA51JU6888", "KA51S1211", "KA51F1481", "KA01JD2011",
	"KA40A9996", "KA25MC8245", "KA01AP820", "KA51P8651", "KA03KZ61",
}

var sampleReporters = []string{
	"0x70997970C51812dc3A010C7d01b50e0d17dc79C8",
	"0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC",
	"0x90F79bf6EB2c4f870365E785982E1f101E93b906",
}

var sampleDescriptions = map[models.ViolationType]string{
	models.ViolationHelmet:       "Rider and pillion without helmets",
	models.ViolationPlateTamper:  "Number plate partially covered with tape",
	models.ViolationSpeeding:     "Overspeeding on the service road",
	models.ViolationWrongParking: "Parked across the bus stop",
	models.ViolationOther:        "Driving on the footpath",
}

// decisions skews seeded reviews towards leaving reports pending.
var decisions = []models.ViolationStatus{
	models.ViolationPending,
	models.ViolationPending,
	models.ViolationPending,
	models.ViolationApproved,
	models.ViolationRejected,
}

var fineAmounts = map[models.ViolationType]int64{
	models.ViolationHelmet:       500,
	models.ViolationPlateTamper:  5000,
	models.ViolationSpeeding:     1000,
	models.ViolationWrongParking: 200,
	models.ViolationOther:        500,
}

var (
	seedCount    int
	seedReviewer string
	seedRand     int64
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Submit sample vehicles and reports",
	Long: `Register the sample vehicles and submit --count reports from a few sample
reporters. Roughly two in five reports are then reviewed by --reviewer.`,
	Args: cobra.NoArgs,
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().IntVar(&seedCount, "count", 20, "Number of reports to submit")
	seedCmd.Flags().StringVar(&seedReviewer, "reviewer", "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266", "Reviewer address for seeded reviews")
	seedCmd.Flags().Int64Var(&seedRand, "seed", 0, "Random seed (0 picks one)")
}

func runSeed(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	if seedCount <= 0 {
		return fmt.Errorf("--count must be positive")
	}
	rng := rand.New(rand.NewSource(seedRand))
	if seedRand == 0 {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}

	c := backendClient()
	out := cmd.OutOrStdout()

	vehicleIDs, err := seedVehicles(ctx, c)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "registered %d vehicles\n", len(vehicleIDs))

	types := models.ViolationTypes()
	var submitted, approved, rejected int
	for i := 0; i < seedCount; i++ {
		vehicleID := vehicleIDs[rng.Intn(len(vehicleIDs))]
		violationType := types[rng.Intn(len(types))]

		v, err := c.Submit(ctx, services.SubmitInput{
			Reporter:      sampleReporters[rng.Intn(len(sampleReporters))],
			VehicleID:     &vehicleID,
			ViolationType: &violationType,
			Description:   sampleDescriptions[violationType],
			EvidenceURL:   fmt.Sprintf("ipfs://seed-%d-%d", vehicleID, i),
		})
		if err != nil {
			return fmt.Errorf("submit %d: %w", i, err)
		}
		submitted++

		decision := decisions[rng.Intn(len(decisions))]
		if decision == models.ViolationPending {
			continue
		}
		req := client.ReviewRequest{Status: decision, Reviewer: seedReviewer}
		if decision == models.ViolationApproved {
			fine := decimal.NewFromInt(fineAmounts[violationType])
			req.FineAmount = &fine
			req.ReviewNotes = "Verified violation. Proceed with fine."
			approved++
		} else {
			req.ReviewNotes = "Evidence inconclusive."
			rejected++
		}
		if _, err := c.Review(ctx, v.ID, req); err != nil {
			return fmt.Errorf("review %d: %w", v.ID, err)
		}
	}

	fmt.Fprintf(out, "submitted %d reports (%d approved, %d rejected, %d pending)\n",
		submitted, approved, rejected, submitted-approved-rejected)
	return nil
}

func seedVehicles(ctx context.Context, c *client.Client) ([]int64, error) {
	ids := make([]int64, 0, len(samplePlates))
	for i, plate := range samplePlates {
		v, err := c.RegisterVehicle(ctx, services.VehicleInput{
			PlateNumber:   plate,
			ChassisNumber: fmt.Sprintf("MA3EWDE1S00%06d", i),
			EngineNumber:  fmt.Sprintf("K12MN%07d", i),
			OwnerName:     fmt.Sprintf("Owner %d", i+1),
			OwnerAddress:  sampleReporters[i%len(sampleReporters)],
			VehicleType:   "car",
			Model:         "Swift",
			Year:          2018 + i%6,
		})
		if err != nil {
			return nil, fmt.Errorf("register %s: %w", plate, err)
		}
		ids = append(ids, v.ID)
	}
	return ids, nil
}
