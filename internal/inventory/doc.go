// Package inventory holds the stock rules of the application: applying movements,
// classifying materials by urgency, the turnover report and the regression forecast.
//
// Everything here is pure. Callers pass in "today" and the records to work on.
package inventory
