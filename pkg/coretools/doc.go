// Package coretools provides the built-in tools served by the tool server:
// get_system_info, get_file_info and list_directory_contents.
//
// Failures are returned as errors so the server reports them as error results.
package coretools
