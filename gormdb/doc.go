// Package gormdb connects flow.DbDestination to the databases supported by gorm.
package gormdb
