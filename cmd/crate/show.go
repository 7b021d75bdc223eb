package main

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/halvard/crate/internal/store"
	"github.com/spf13/cobra"
)

var (
	showNeedsReviewOnly bool
	showVerbose         bool
	showTree            bool
	showTreeDepth       int
	showDirsOnly        bool
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show processed albums and their destination paths",
	Long: `Display the albums recorded in metadata.db: source path, destination
path, quality, and (with --verbose) the enrichment source and
confidence that were used to place it.

Use --tree to render the destination library as a folder tree instead
of a flat list.`,
	RunE: runShow,
}

func init() {
	showCmd.Flags().BoolVar(&showNeedsReviewOnly, "needs-review-only", false, "show only albums flagged for manual review")
	showCmd.Flags().BoolVarP(&showVerbose, "verbose", "v", false, "show enrichment source, confidence, and track/size detail")
	showCmd.Flags().BoolVar(&showTree, "tree", false, "show destination folder structure as a tree")
	showCmd.Flags().IntVarP(&showTreeDepth, "depth", "L", 0, "limit tree depth (0 = unlimited, only with --tree)")
	showCmd.Flags().BoolVar(&showDirsOnly, "dirs-only", false, "show only directories in tree (only with --tree)")
	rootCmd.AddCommand(showCmd)
}

func runShow(cmd *cobra.Command, args []string) error {
	rt, err := loadRuntime(cmd)
	if err != nil {
		return err
	}
	defer rt.log.Close()

	meta, err := store.OpenMetadata(rt.cfg.MetadataDbPath)
	if err != nil {
		return fmt.Errorf("open metadata db: %w", err)
	}
	defer meta.Close()

	status := store.StatusOK
	if showNeedsReviewOnly {
		status = store.StatusNeedsReview
	}
	albums, err := meta.ListAlbums(status)
	if err != nil {
		return fmt.Errorf("list albums: %w", err)
	}

	if len(albums) == 0 {
		fmt.Println("no albums recorded yet, run 'crate process' first")
		return nil
	}

	if showTree {
		return showDestinationTree(albums, showTreeDepth, showDirsOnly)
	}

	fmt.Printf("=== %d album(s) ===\n\n", len(albums))
	for _, a := range albums {
		fmt.Printf("%s\n", filepath.Base(a.NewPath))
		fmt.Printf("   source: %s\n", a.SourcePath)
		fmt.Printf("   dest:   %s\n", a.NewPath)
		fmt.Printf("   status: %s, quality: %s\n", a.Status, a.Quality)
		if showVerbose {
			fmt.Printf("   artist: %s, year: %s, label: %s\n", a.Artist, a.Year, a.Label)
			fmt.Printf("   tracks: %d, size: %d bytes, bitrate: %.0fkbps\n", a.TrackCount, a.TotalBytes, a.AvgBitrateKbps)
			if a.EnrichmentSource != "" {
				fmt.Printf("   enrichment: %s (confidence %.2f)\n", a.EnrichmentSource, a.Confidence)
			}
			if a.NeedsReview {
				fmt.Printf("   needs review: yes\n")
			}
		}
		fmt.Println()
	}
	return nil
}

// showDestinationTree renders the recorded destination paths as a
// folder tree, matching the box-drawing layout used elsewhere for
// reviewing a library before it's trusted unattended.
func showDestinationTree(albums []store.AlbumRow, maxDepth int, dirsOnly bool) error {
	root := buildTree(albums, maxDepth, dirsOnly)
	fmt.Print(generateTreeOutput(root, dirsOnly))
	return nil
}

// TreeNode is one node of the destination folder tree.
type TreeNode struct {
	Name      string
	IsDir     bool
	Children  map[string]*TreeNode
	FileCount int
}

func buildTree(albums []store.AlbumRow, maxDepth int, dirsOnly bool) *TreeNode {
	root := &TreeNode{Name: ".", IsDir: true, Children: make(map[string]*TreeNode)}

	for _, a := range albums {
		if a.NewPath == "" {
			continue
		}
		parts := strings.Split(filepath.Clean(a.NewPath), string(filepath.Separator))
		if maxDepth > 0 && len(parts) > maxDepth {
			parts = parts[:maxDepth]
		}

		current := root
		for i, part := range parts {
			if part == "" || part == "." {
				continue
			}
			isLastPart := i == len(parts)-1

			if dirsOnly && isLastPart {
				current.FileCount++
				continue
			}

			if _, exists := current.Children[part]; !exists {
				current.Children[part] = &TreeNode{
					Name:     part,
					IsDir:    !isLastPart,
					Children: make(map[string]*TreeNode),
				}
			}
			current = current.Children[part]
		}
	}

	return root
}

func generateTreeOutput(node *TreeNode, dirsOnly bool) string {
	var sb strings.Builder
	sb.WriteString(".\n")
	generateTreeLines(node, "", &sb, dirsOnly)
	stats := calculateTreeStats(node)
	sb.WriteString(fmt.Sprintf("\n%d directories", stats.dirs))
	if !dirsOnly {
		sb.WriteString(fmt.Sprintf(", %d albums", stats.files))
	}
	sb.WriteString("\n")
	return sb.String()
}

func generateTreeLines(node *TreeNode, prefix string, sb *strings.Builder, dirsOnly bool) {
	if node.Name == "." {
		children := sortedTreeChildren(node)
		for _, child := range children {
			generateTreeLinesForChild(child, "", sb, dirsOnly, child == children[len(children)-1])
		}
		return
	}
}

func generateTreeLinesForChild(node *TreeNode, prefix string, sb *strings.Builder, dirsOnly bool, isLast bool) {
	connector, extension := "├── ", "│   "
	if isLast {
		connector, extension = "└── ", "    "
	}

	displayName := node.Name
	if node.IsDir {
		displayName += "/"
	}
	if dirsOnly && node.FileCount > 0 {
		displayName += fmt.Sprintf(" (%d albums)", node.FileCount)
	}
	sb.WriteString(prefix + connector + displayName + "\n")

	if node.IsDir && len(node.Children) > 0 {
		children := sortedTreeChildren(node)
		newPrefix := prefix + extension
		for _, child := range children {
			generateTreeLinesForChild(child, newPrefix, sb, dirsOnly, child == children[len(children)-1])
		}
	}
}

func sortedTreeChildren(node *TreeNode) []*TreeNode {
	children := make([]*TreeNode, 0, len(node.Children))
	for _, c := range node.Children {
		children = append(children, c)
	}
	sort.Slice(children, func(i, j int) bool {
		if children[i].IsDir != children[j].IsDir {
			return children[i].IsDir
		}
		return strings.ToLower(children[i].Name) < strings.ToLower(children[j].Name)
	})
	return children
}

type treeStats struct {
	dirs  int
	files int
}

func calculateTreeStats(node *TreeNode) treeStats {
	stats := treeStats{}
	if node.IsDir {
		stats.dirs++
		for _, child := range node.Children {
			c := calculateTreeStats(child)
			stats.dirs += c.dirs
			stats.files += c.files
		}
		stats.files += node.FileCount
	} else {
		stats.files++
	}
	return stats
}
