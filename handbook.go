// Package handbook answers questions about university student handbooks.
// It ingests paginated handbook documents into page-tagged text, keeps one
// snapshot per document, selects the lines relevant to a question and asks
// a large language model to answer from that excerpt with page citations.
//
// This package contains domain types, interfaces and the pure relevance
// algorithm following Ben Johnson's Standard Package Layout. Implementations
// live in subdirectories named after their primary dependency (e.g., pdf/,
// sqlite/, gemini/).
package handbook
