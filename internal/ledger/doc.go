// Package ledger records permanent approve/reject decisions for candidate
// clips. The ledger outlives individual jobs: once a clip is rejected it is
// never downloaded or validated again, and approved clips can be reused from
// the shared pool without revalidation.
package ledger
