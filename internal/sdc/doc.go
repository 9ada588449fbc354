// Package sdc talks to the LASP MMS Science Data Center. It lists the science
// files available for a selector (file_info API), widens the requested time
// range into the query window the SDC expects, narrows catalog results back
// to the files overlapping the request, and streams file bodies for the
// downloader. Public endpoints are used for anonymous sessions and the SITL
// endpoints for authenticated ones.
package sdc
