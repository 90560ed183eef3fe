// Package analytics derives analysis records from an instrument's price
// history.
//
// For every trading day it computes trailing daily moving averages over
// 5, 10, 20, 50, 100 and 200 days, narrowing the window at the start of the
// series so the daily averages are never null. Closes are also resampled to
// week-end and month-end series; the 30-week, 12-month and 36-month trailing
// means over those series stay null until enough periods exist. A 14-period
// RSI is carried alongside.
//
// Compute is pure. Aggregator.Run loads the bars, computes, and replaces the
// instrument's stored records in one transaction.
package analytics
