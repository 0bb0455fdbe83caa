package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/facturia/facturia/internal/authz"
)

// RolesOptions configures RolesCommand.
type RolesOptions struct {
	JSONOutput bool
	// Permission limits the output to roles granting this tag.
	Permission string
	Stdout     io.Writer
	Stderr     io.Writer
}

type roleRow struct {
	Role        authz.Role         `json:"role"`
	Permissions []authz.Permission `json:"permissions"`
	Assignable  []authz.Role       `json:"assignable"`
}

// RolesCommand prints the role to permission matrix.
func RolesCommand(opts RolesOptions) int {
	stdout, stderr := streams(opts.Stdout, opts.Stderr)
	var (
		filter    authz.Permission
		filtering = opts.Permission != ""
	)
	if filtering {
		p, ok := authz.ParsePermission(opts.Permission)
		if !ok {
			fmt.Fprintf(stderr, "roles: unknown permission %q\n", opts.Permission)
			return 1
		}
		filter = p
	}

	matrix := authz.Matrix()
	rows := make([]roleRow, 0, len(matrix))
	for _, role := range authz.AllRoles() {
		if filtering && !authz.PermissionsFor(role).Has(filter) {
			continue
		}
		rows = append(rows, roleRow{
			Role:        role,
			Permissions: matrix[role],
			Assignable:  authz.AssignableRolesFor(role),
		})
	}

	var err error
	if opts.JSONOutput {
		err = writeJSON(stdout, rows)
	} else {
		tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ROLE\tPERMISSIONS")
		for _, row := range rows {
			names := make([]string, len(row.Permissions))
			for i, p := range row.Permissions {
				names[i] = p.String()
			}
			perms := strings.Join(names, ", ")
			if perms == "" {
				perms = "-"
			}
			fmt.Fprintf(tw, "%s\t%s\n", row.Role, perms)
		}
		err = tw.Flush()
	}
	if err != nil {
		fmt.Fprintf(stderr, "roles: %v\n", err)
		return 1
	}
	return 0
}
