// Package storageopt 存放 xredis、xregistry、xdlock 共用的小工具：
// 限时与脱离取消的 context、探活统计、慢命令检测。
package storageopt
