// Command seeder writes a small sample catalog into a run directory so the
// embed and query stages can be tried without access to a catalog service.
//
// Input lines are tab separated: title, author, item type, year, summary.
// Lines starting with # are ignored.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/poiesic/advisor/artifact"
	"github.com/poiesic/advisor/core"
)

var samples = []string{
	"Jurassic Park\tSpielberg, Steven\tDVD\t1993\tScientists clone dinosaurs for a theme park and the animals escape.",
	"Galaxy Quest\tParisot, Dean\tDVD\t1999\tThe cast of a cancelled space show is mistaken for real astronauts by aliens.",
	"Julie & Julia\tEphron, Nora\tDVD\t2009\tA blogger cooks her way through Julia Child's first cookbook.",
	"The Martian\tScott, Ridley\tDVD\t2015\tAn astronaut stranded on Mars grows potatoes and waits for rescue.",
	"Spirited Away\tMiyazaki, Hayao\tDVD\t2001\tA girl works in a bathhouse for spirits to free her parents from a curse.",
	"Chef\tFavreau, Jon\tDVD\t2014\tA chef quits his restaurant job and starts a food truck with his son.",
	"The Land Before Time\tBluth, Don\tDVD\t1988\tA young dinosaur and his friends travel to find the Great Valley.",
	"Apollo 13\tHoward, Ron\tDVD\t1995\tThree astronauts improvise their way home after an explosion in space.",
	"Ratatouille\tBird, Brad\tDVD\t2007\tA rat who dreams of being a chef teams up with a garbage boy in Paris.",
	"Moon\tJones, Duncan\tDVD\t2009\tA lone worker on a lunar mining base nears the end of his contract.",
	"Big Night\tTucci, Stanley\tDVD\t1996\tTwo brothers gamble their failing restaurant on one extravagant dinner.",
	"Paddington\tKing, Paul\tDVD\t2014\tA polite bear from Peru looks for a home in London.",
}

var (
	seedFileName = flag.String("src", "", "file of seed data")
	runDirName   = flag.String("run-dir", "data/sample", "run directory to write records.json into")
)

func init() {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(handler))
}

// linesFromFile returns an iterator over lines in a file.
func linesFromFile(filename string) (iter.Seq[string], error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}

	return func(yield func(string) bool) {
		defer f.Close()
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			if !yield(scanner.Text()) {
				return
			}
		}
	}, nil
}

// linesFromSlice returns an iterator over a slice of strings.
func linesFromSlice(lines []string) iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, line := range lines {
			if !yield(line) {
				return
			}
		}
	}
}

// parseRecord turns one seed line into a record. The ID is derived from the
// line number so reseeding the same file keeps IDs stable.
func parseRecord(n int, line string) (*core.EnrichedRecord, error) {
	fields := strings.Split(line, "\t")
	if len(fields) < 2 || strings.TrimSpace(fields[0]) == "" {
		return nil, fmt.Errorf("line %d: want at least title and author", n)
	}
	for len(fields) < 5 {
		fields = append(fields, "")
	}
	rec := core.NewEnrichedRecord(core.CatalogRecord{
		ID:              fmt.Sprintf("seed-%04d", n),
		Title:           strings.TrimSpace(fields[0]),
		Author:          strings.TrimSpace(fields[1]),
		ItemType:        strings.TrimSpace(fields[2]),
		PublicationDate: strings.TrimSpace(fields[3]),
		Available:       true,
	})
	if summary := strings.TrimSpace(fields[4]); summary != "" {
		rec.ApplyEdition("", summary, nil)
	}
	return rec, nil
}

func collectRecords(source iter.Seq[string]) ([]*core.EnrichedRecord, error) {
	var records []*core.EnrichedRecord
	n := 0
	for line := range source {
		n++
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}
		rec, err := parseRecord(n, line)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func main() {
	flag.Parse()
	startedAt := time.Now()

	// Determine source of seed data
	var source iter.Seq[string]
	if seedFileName != nil && *seedFileName != "" {
		var err error
		source, err = linesFromFile(*seedFileName)
		if err != nil {
			panic(err)
		}
	} else {
		source = linesFromSlice(samples)
	}

	records, err := collectRecords(source)
	if err != nil {
		panic(err)
	}

	runDir := artifact.RunDir(*runDirName)
	if err := runDir.Ensure(); err != nil {
		panic(err)
	}
	lock, err := runDir.Lock()
	if err != nil {
		panic(err)
	}
	defer lock.Unlock()

	if err := runDir.WriteRecords(records); err != nil {
		panic(err)
	}
	if err := runDir.RecordStage(artifact.StageFetch, startedAt, map[string]int{"records": len(records)}); err != nil {
		panic(err)
	}
	slog.Info("seeded run directory", "path", runDir.RecordsPath(), "records", len(records))
}
