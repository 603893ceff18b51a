// Package config provides configuration structures and utilities for webcrawler.
// It defines crawl engine settings, output preferences, logging options and
// the optional YAML configuration file that seeds them.
package config
