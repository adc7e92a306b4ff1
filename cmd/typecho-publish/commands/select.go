package commands

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"typecho-publish/lib/scrapers/typecho/admin"
)

// ParseSelection interprets a 1-based selection string: single indices
// and hyphenated ranges, space separated ("1 3 5-7"). Out-of-range or
// malformed parts are reported and skipped. The result is sorted and
// deduplicated.
func ParseSelection(out io.Writer, input string, max int) []int {
	var selected []int
	for _, part := range strings.Fields(input) {
		if start, end, ok := strings.Cut(part, "-"); ok {
			lo, err1 := strconv.Atoi(start)
			hi, err2 := strconv.Atoi(end)
			if err1 != nil || err2 != nil {
				fmt.Fprintf(out, "invalid range %q, expected something like 1-3\n", part)
				continue
			}
			if !(1 <= lo && lo <= hi && hi <= max) {
				fmt.Fprintf(out, "range %q out of bounds, valid indices are 1-%d\n", part, max)
				continue
			}
			for i := lo; i <= hi; i++ {
				selected = append(selected, i)
			}
			continue
		}

		n, err := strconv.Atoi(part)
		if err != nil {
			fmt.Fprintf(out, "invalid input %q, expected a number\n", part)
			continue
		}
		if n < 1 || n > max {
			fmt.Fprintf(out, "index %d out of bounds, valid indices are 1-%d\n", n, max)
			continue
		}
		selected = append(selected, n)
	}

	slices.Sort(selected)
	return slices.Compact(selected)
}

func renderTable(out io.Writer, header table.Row, rows []table.Row) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.AppendHeader(header)
	t.AppendRows(rows)
	t.Render()
}

// selectCategories prompts for category indices. Empty input picks the
// first category; invalid input re-prompts.
func selectCategories(in *bufio.Scanner, out io.Writer, categories []admin.Category) []int {
	slices.SortFunc(categories, func(a, b admin.Category) int {
		return a.ID - b.ID
	})

	rows := make([]table.Row, len(categories))
	for i, cate := range categories {
		rows[i] = table.Row{i + 1, cate.ID, cate.Name}
	}
	renderTable(out, table.Row{"#", "ID", "Category"}, rows)
	fmt.Fprintln(out, "pick categories: single (1), list (1 3), range (1-2); enter for the first")

	for {
		fmt.Fprint(out, "> ")
		if !in.Scan() {
			return []int{categories[0].ID}
		}
		input := strings.TrimSpace(in.Text())
		if input == "" {
			return []int{categories[0].ID}
		}
		indices := ParseSelection(out, input, len(categories))
		if len(indices) == 0 {
			fmt.Fprintln(out, "nothing selected, try again")
			continue
		}
		ids := make([]int, len(indices))
		for i, idx := range indices {
			ids[i] = categories[idx-1].ID
		}
		return ids
	}
}

// selectFiles prompts for documents to publish. Empty input returns
// nil (the caller treats it as "quit"), "all" selects everything.
func selectFiles(in *bufio.Scanner, out io.Writer, paths []string) []string {
	rows := make([]table.Row, len(paths))
	for i, p := range paths {
		rows[i] = table.Row{i + 1, filepath.Base(p)}
	}
	renderTable(out, table.Row{"#", "File"}, rows)
	fmt.Fprintln(out, "pick files: single (1 3 5), range (1-3), or all; enter to quit")

	for {
		fmt.Fprint(out, "> ")
		if !in.Scan() {
			return nil
		}
		input := strings.TrimSpace(in.Text())
		if input == "" {
			return nil
		}
		if strings.EqualFold(input, "all") {
			return paths
		}
		indices := ParseSelection(out, input, len(paths))
		if len(indices) == 0 {
			fmt.Fprintln(out, "nothing selected, try again")
			continue
		}
		selected := make([]string, len(indices))
		for i, idx := range indices {
			selected[i] = paths[idx-1]
		}
		return selected
	}
}
