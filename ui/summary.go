package ui

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"datasetscraper/metadata"
	"datasetscraper/models"
	"datasetscraper/video"
)

const rule = "=================================================="

// titleCase turns "video_frames" into "Video Frames"
func titleCase(s string) string {
	words := strings.Fields(strings.ReplaceAll(s, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// PrintSession writes the end-of-run report for a gallery session
func PrintSession(w io.Writer, s *models.GallerySession, outputDir string) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Gallery Session Summary")
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Session:     %s\n", s.ID)
	fmt.Fprintf(w, "Source:      %s\n", s.SourceURL)
	if s.Site != "" {
		fmt.Fprintf(w, "Site:        %s (%s mode)\n", s.Site, s.Mode)
	}

	if s.FatalFetch {
		fmt.Fprintf(w, "Page fetch failed: %v\n", s.FetchErr)
		fmt.Fprintf(w, "Stopped:     %s\n", s.StopReason)
		return
	}

	fmt.Fprintf(w, "Requested:   %d\n", s.Requested)
	fmt.Fprintf(w, "Candidates:  %d\n", s.Candidates)
	fmt.Fprintf(w, "Attempted:   %d\n", s.Attempted)
	fmt.Fprintf(w, "Succeeded:   %d\n", s.Succeeded)
	fmt.Fprintf(w, "Failed:      %d\n", s.Failed)

	summary := s.Summary()
	fmt.Fprintln(w, "\nOutcomes:")
	for _, o := range models.Outcomes() {
		if summary[o] > 0 {
			fmt.Fprintf(w, "   %-18s %d\n", o.String()+":", summary[o])
		}
	}

	fmt.Fprintf(w, "\nStopped:     %s\n", s.StopReason)
	fmt.Fprintf(w, "Elapsed:     %s\n", s.Elapsed.Round(time.Millisecond))
	if outputDir != "" {
		fmt.Fprintf(w, "Files in:    %s\n", outputDir)
	}
}

// PrintDatasetReport writes the dataset summary
func PrintDatasetReport(w io.Writer, r *metadata.Report) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Dataset Summary Report")
	fmt.Fprintln(w, rule)

	fmt.Fprintln(w, "\nFile Counts:")
	for _, name := range r.DirNames() {
		fmt.Fprintf(w, "   %s: %d files\n", titleCase(name), r.FileCounts[name])
	}

	fmt.Fprintf(w, "\nTotal Files: %d\n", r.TotalFiles)
	fmt.Fprintf(w, "Metadata Entries: %d\n", r.MetadataEntries)

	if len(r.SourceBreakdown) > 0 {
		kinds := make([]string, 0, len(r.SourceBreakdown))
		for k := range r.SourceBreakdown {
			kinds = append(kinds, string(k))
		}
		sort.Strings(kinds)

		fmt.Fprintln(w, "\nSource Breakdown:")
		for _, k := range kinds {
			fmt.Fprintf(w, "   %s: %d files\n", titleCase(k), r.SourceBreakdown[models.SourceKind(k)])
		}
	}

	if r.DuplicateGroups > 0 {
		fmt.Fprintln(w, "\nDuplicates Found:")
		fmt.Fprintf(w, "   %d groups with %d duplicate files\n", r.DuplicateGroups, r.TotalDuplicates)
	}

	fmt.Fprintf(w, "\nLast Updated: %s\n", r.GeneratedAt.Format("2006-01-02 15:04:05"))
}

// PrintVideoReport writes the result of a video run
func PrintVideoReport(w io.Writer, r *video.Report, framesDir string) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Video Processing Summary")
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "New videos:        %d\n", r.Downloaded)
	fmt.Fprintf(w, "Processed:         %d\n", r.Processed)
	fmt.Fprintf(w, "Already processed: %d\n", r.Skipped)
	if r.Failed > 0 {
		fmt.Fprintf(w, "Failed:            %d\n", r.Failed)
	}
	fmt.Fprintf(w, "Frames extracted:  %d\n", r.Frames)
	fmt.Fprintf(w, "Frames recorded:   %d\n", r.Recorded)
	fmt.Fprintf(w, "Frames in:         %s\n", framesDir)
}

// PrintDuplicateGroups lists perceptual duplicate groups, keeper first
func PrintDuplicateGroups(w io.Writer, groups [][]string) {
	if len(groups) == 0 {
		fmt.Fprintln(w, "No duplicates found")
		return
	}
	total := 0
	for i, g := range groups {
		fmt.Fprintf(w, "Group %d (%d files):\n", i+1, len(g))
		fmt.Fprintf(w, "   keep  %s\n", g[0])
		for _, p := range g[1:] {
			fmt.Fprintf(w, "   dup   %s\n", p)
		}
		total += len(g) - 1
	}
	fmt.Fprintf(w, "\n%d groups with %d duplicate files\n", len(groups), total)
}
