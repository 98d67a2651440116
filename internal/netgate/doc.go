// Package netgate decides whether the uploader may transfer right now.
//
// A Provider reports the device's connectivity and whether the vehicle is
// offroad. The Gate turns that State into a Decision: proceed or not, whether
// large full-fidelity files may go out, and how long to sleep when there is
// nothing to do. The Watcher listens for network hotplug events so a sleeping
// loop can react to a new link without waiting out the full interval.
package netgate
