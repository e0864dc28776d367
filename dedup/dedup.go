package dedup

import (
	"fmt"
	"image"
	"os"

	"datasetscraper/parser"

	"github.com/corona10/goimagehash"
	"github.com/disintegration/imaging"
	log "github.com/sirupsen/logrus"
	_ "golang.org/x/image/webp"
)

// DefaultThreshold is the Hamming distance below which two images count
// as the same picture
const DefaultThreshold = 10

// HashImage returns the 64-bit perception hash of img
func HashImage(img image.Image) (*goimagehash.ImageHash, error) {
	log.Tracef("[Dedup] Hashing image of size %v", img.Bounds().Size())
	return goimagehash.PerceptionHash(img)
}

// HashFile decodes path, honoring EXIF orientation, and hashes it
func HashFile(path string) (*goimagehash.ImageHash, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return HashImage(img)
}

type hashed struct {
	path string
	hash *goimagehash.ImageHash
}

// Group returns sets of near-identical images, each of two or more paths.
// Paths are taken in order; the first unassigned one seeds a group and
// every later unassigned path within threshold of the seed joins it.
// Files that cannot be decoded are logged and left out.
func Group(paths []string, threshold int) ([][]string, error) {
	if threshold < 0 {
		return nil, fmt.Errorf("threshold must not be negative, got %d", threshold)
	}

	items := make([]hashed, 0, len(paths))
	for _, p := range paths {
		h, err := HashFile(p)
		if err != nil {
			log.Warnf("[Dedup] Skipping %v", err)
			continue
		}
		items = append(items, hashed{path: p, hash: h})
	}

	assigned := make([]bool, len(items))
	var groups [][]string

	for i, seed := range items {
		if assigned[i] {
			continue
		}
		group := []string{seed.path}

		for j := i + 1; j < len(items); j++ {
			if assigned[j] {
				continue
			}
			distance, err := seed.hash.Distance(items[j].hash)
			if err != nil {
				log.Errorf("[Dedup] Failed to get distance between %s and %s: %v", seed.path, items[j].path, err)
				continue
			}
			if distance < threshold {
				log.Debugf("[Dedup] %s ~ %s (distance %d)", seed.path, items[j].path, distance)
				group = append(group, items[j].path)
				assigned[j] = true
			}
		}

		if len(group) > 1 {
			assigned[i] = true
			groups = append(groups, group)
		}
	}

	log.Infof("[Dedup] %d image(s) hashed, %d duplicate group(s)", len(items), len(groups))
	return groups, nil
}

// Scan groups every image below dir
func Scan(dir string, threshold int) ([][]string, error) {
	files, err := parser.WalkImageFiles(dir)
	if err != nil {
		return nil, err
	}
	return Group(files, threshold)
}

// RemoveDuplicates deletes all but the first path of every group and
// returns the deleted paths. It stops at the first failed removal.
func RemoveDuplicates(groups [][]string) ([]string, error) {
	var removed []string
	for _, g := range groups {
		for _, p := range g[1:] {
			if err := os.Remove(p); err != nil {
				return removed, fmt.Errorf("failed to remove %s: %w", p, err)
			}
			log.Infof("[Dedup] Removed %s (duplicate of %s)", p, g[0])
			removed = append(removed, p)
		}
	}
	return removed, nil
}
