// Package tools defines the Tool interface exposed to the LLM for function calling,
// including the parameter schema and the decoding of LLM-chosen arguments.
package tools
