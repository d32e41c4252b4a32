// Package github provides a connector for the GitHub repository search API.
//
// GitHub search works without credentials at 10 requests per minute; a
// personal access token raises the limit to 30 requests per minute.
// Repository records map onto works with the repository path as the
// identifier and the star count standing in for citations.
//
// API Documentation: https://docs.github.com/en/rest/search
package github

import "time"

// SearchResponse represents the GitHub repository search API response.
type SearchResponse struct {
	TotalCount        int          `json:"total_count"`
	IncompleteResults bool         `json:"incomplete_results"`
	Items             []Repository `json:"items"`
}

// Repository represents a repository in a search response.
type Repository struct {
	FullName        string    `json:"full_name"`
	Description     string    `json:"description"`
	HTMLURL         string    `json:"html_url"`
	StargazersCount int       `json:"stargazers_count"`
	Language        string    `json:"language"`
	CreatedAt       time.Time `json:"created_at"`
	Owner           Owner     `json:"owner"`
}

// Owner represents the repository owner.
type Owner struct {
	Login string `json:"login"`
}

// ErrorResponse represents an error payload from the GitHub API.
type ErrorResponse struct {
	Message          string `json:"message"`
	DocumentationURL string `json:"documentation_url,omitempty"`
}
