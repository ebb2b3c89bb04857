// Package candidates implements the fetch and download stages. The fetch
// stage turns a job query into a candidate manifest; the download stage
// settles every manifest entry by reusing, validating, or rejecting it.
// The manifest is rewritten after each clip so a crashed job resumes
// mid-list instead of re-downloading settled clips.
package candidates
