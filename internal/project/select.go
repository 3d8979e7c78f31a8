package project

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Select prints the numbered projects to w and reads a choice from r,
// asking again on invalid input. End of input yields ErrNoSelection.
func Select(projects []Project, r io.Reader, w io.Writer) (Project, error) {
	if len(projects) == 0 {
		return Project{}, ErrNoProjects
	}
	fmt.Fprintln(w, "\nAvailable projects:")
	for i, p := range projects {
		fmt.Fprintf(w, "%d. %s\n", i+1, p.Name)
	}

	sc := bufio.NewScanner(r)
	for {
		fmt.Fprintf(w, "\nSelect a project (1-%d): ", len(projects))
		if !sc.Scan() {
			fmt.Fprintln(w)
			return Project{}, ErrNoSelection
		}
		n, err := strconv.Atoi(strings.TrimSpace(sc.Text()))
		if err != nil {
			fmt.Fprintln(w, "Please enter a valid number")
			continue
		}
		if n < 1 || n > len(projects) {
			fmt.Fprintf(w, "Please enter a number between 1 and %d\n", len(projects))
			continue
		}
		return projects[n-1], nil
	}
}
