// Command analyze aggregates saved episode sessions and reports which
// strikes took the most coconuts and where the juice went.
package main

import (
	"flag"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/rewired-gh/monkeyball/internal/save"
)

var (
	outputDir = flag.String("dir", "output", "Directory holding saved sessions")
	lastN     = flag.Int("last", 0, "Only analyze the newest N sessions (0 = all)")
	topK      = flag.Int("top", 10, "Number of strikes to report")
)

type strikeTotals struct {
	Strike      int
	Hits        int
	RetailJuice float64
	MMJuice     float64
	Gamma       float64
	Sessions    int
}

func main() {
	flag.Parse()

	manager, err := save.NewManager(*outputDir)
	if err != nil {
		log.Fatalf("Failed to open output dir: %v", err)
	}

	sessions := manager.ListSessions()
	if len(sessions) == 0 {
		log.Fatalf("No saved sessions under %s", *outputDir)
	}
	if *lastN > 0 && len(sessions) > *lastN {
		sessions = sessions[len(sessions)-*lastN:]
	}

	fmt.Println("=" + strings.Repeat("=", 79))
	fmt.Printf("COCONUT SESSION ANALYSIS (%d sessions)\n", len(sessions))
	fmt.Println("=" + strings.Repeat("=", 79))
	fmt.Println()

	byStrike := map[int]*strikeTotals{}
	var totalFrames int
	for _, info := range sessions {
		_, stats, err := manager.LoadSession(info.Dir)
		if err != nil {
			log.Printf("Skipping %s: %v", info.Dir, err)
			continue
		}
		totalFrames += info.Frame
		for _, row := range stats {
			agg, ok := byStrike[row.Strike]
			if !ok {
				agg = &strikeTotals{Strike: row.Strike}
				byStrike[row.Strike] = agg
			}
			agg.Hits += row.Hits
			agg.RetailJuice += row.RetailJuice
			agg.MMJuice += row.MMJuice
			agg.Gamma = row.Gamma
			agg.Sessions++
		}
	}

	ranked := make([]*strikeTotals, 0, len(byStrike))
	var totalHits int
	var totalRetail, totalMM float64
	for _, agg := range byStrike {
		ranked = append(ranked, agg)
		totalHits += agg.Hits
		totalRetail += agg.RetailJuice
		totalMM += agg.MMJuice
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Hits != ranked[j].Hits {
			return ranked[i].Hits > ranked[j].Hits
		}
		return ranked[i].Strike < ranked[j].Strike
	})

	fmt.Printf("Launches: %d   Hits: %d (%.1f%%)\n", totalFrames, totalHits, percent(totalHits, totalFrames))
	fmt.Printf("Juice collected: retail %.2f, market maker %.2f\n\n", totalRetail, totalMM)

	fmt.Printf("Top %d strikes by hits:\n", *topK)
	fmt.Printf("%-8s %-6s %-8s %-12s %-10s %-8s\n", "Strike", "Hits", "Share", "RetailJuice", "MMJuice", "Gamma")
	for i, agg := range ranked {
		if i >= *topK {
			break
		}
		fmt.Printf("%-8d %-6d %-7.1f%% %-12.2f %-10.2f %-8.3f\n",
			agg.Strike, agg.Hits, percent(agg.Hits, totalHits), agg.RetailJuice, agg.MMJuice, agg.Gamma)
	}
	fmt.Println()

	printSessionTable(sessions)
	printGammaSkew(ranked)
}

func percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return 100 * float64(part) / float64(whole)
}

func printSessionTable(sessions []save.SessionInfo) {
	fmt.Println("Sessions:")
	for _, info := range sessions {
		fmt.Printf("  %-40s spot %-9.2f frames %d\n", info.Dir, info.SpotPrice, info.Frame)
	}
	fmt.Println()
}

// printGammaSkew compares hit share between high- and low-gamma strikes, a
// rough check of whether gamma exposure is suppressing hits as intended.
func printGammaSkew(ranked []*strikeTotals) {
	if len(ranked) < 4 {
		return
	}
	byGamma := make([]*strikeTotals, len(ranked))
	copy(byGamma, ranked)
	sort.Slice(byGamma, func(i, j int) bool { return byGamma[i].Gamma > byGamma[j].Gamma })

	half := len(byGamma) / 2
	var highHits, lowHits int
	for i, agg := range byGamma {
		if i < half {
			highHits += agg.Hits
		} else {
			lowHits += agg.Hits
		}
	}

	fmt.Println("Gamma skew:")
	fmt.Printf("  high-gamma half: %d hits\n", highHits)
	fmt.Printf("  low-gamma half:  %d hits\n", lowHits)
	if highHits < lowHits {
		fmt.Println("  gamma exposure is suppressing hits")
	} else {
		fmt.Println("  no visible gamma suppression in this sample")
	}
}
